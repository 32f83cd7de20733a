package cluster

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/resilience"
)

// mockStore implements Store for testing. Existing cluster membership is
// keyed by report ID; AssignCluster applies the same largest-cluster reuse
// policy the real stores implement.
type mockStore struct {
	existing    map[string]string   // reportID -> clusterID
	members     map[string][]string // clusterID -> reportIDs
	assignCalls int
	failures    int // fail this many AssignCluster calls with a transient error
	fetchErr    error
}

func newMockStore() *mockStore {
	return &mockStore{
		existing: make(map[string]string),
		members:  make(map[string][]string),
	}
}

func (m *mockStore) AssignCluster(_ context.Context, reportIDs []string, proposedID string) (string, error) {
	m.assignCalls++
	if m.failures > 0 {
		m.failures--
		return "", resilience.NewTransientError(eris.New("serialization conflict"))
	}

	chosen := proposedID
	best := 0
	for _, id := range reportIDs {
		if cid, ok := m.existing[id]; ok {
			if n := len(m.members[cid]); n > best {
				best = n
				chosen = cid
			}
		}
	}

	for _, id := range reportIDs {
		if prev, ok := m.existing[id]; ok && prev != chosen {
			m.members[prev] = removeID(m.members[prev], id)
		}
		if m.existing[id] != chosen {
			m.existing[id] = chosen
			m.members[chosen] = append(m.members[chosen], id)
		}
	}
	return chosen, nil
}

func (m *mockStore) FetchByClusterID(_ context.Context, clusterID string) ([]model.Report, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []model.Report
	for _, id := range m.members[clusterID] {
		cid := clusterID
		out = append(out, model.Report{ID: id, ClusterID: &cid})
	}
	return out, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func reports(ids ...string) []model.Report {
	out := make([]model.Report, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Report{ID: id})
	}
	return out
}

func TestCreateCluster_AssignsAllMembers(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	id, err := mgr.CreateCluster(context.Background(), reports("r1", "r2", "r3", "r4"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := mgr.GetClusterReports(context.Background(), id)
	require.NoError(t, err)

	gotIDs := make([]string, 0, len(got))
	for _, r := range got {
		gotIDs = append(gotIDs, r.ID)
		require.NotNil(t, r.ClusterID)
		assert.Equal(t, id, *r.ClusterID)
	}
	assert.ElementsMatch(t, []string{"r1", "r2", "r3", "r4"}, gotIDs)
}

func TestCreateCluster_ReusesLargestExistingCluster(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	big, err := mgr.CreateCluster(context.Background(), reports("a1", "a2", "a3"))
	require.NoError(t, err)
	small, err := mgr.CreateCluster(context.Background(), reports("b1", "b2"))
	require.NoError(t, err)

	// A new report matches members of both clusters: the larger one wins.
	got, err := mgr.CreateCluster(context.Background(), reports("new", "a1", "b1"))
	require.NoError(t, err)
	assert.Equal(t, big, got)
	assert.NotEqual(t, small, got)
}

func TestCreateCluster_RetriesTransientConflict(t *testing.T) {
	store := newMockStore()
	store.failures = 2
	mgr := NewManager(store)
	mgr.retry.InitialBackoff = 1
	mgr.retry.MaxBackoff = 1

	id, err := mgr.CreateCluster(context.Background(), reports("r1", "r2"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 3, store.assignCalls)
}

func TestCreateCluster_TooFewReports(t *testing.T) {
	mgr := NewManager(newMockStore())
	_, err := mgr.CreateCluster(context.Background(), reports("only"))
	assert.Error(t, err)
}

func TestCreateCluster_WriteFailureIsFatal(t *testing.T) {
	store := newMockStore()
	store.failures = 100 // more than the retry budget
	mgr := NewManager(store)
	mgr.retry.InitialBackoff = 1
	mgr.retry.MaxBackoff = 1

	_, err := mgr.CreateCluster(context.Background(), reports("r1", "r2"))
	assert.Error(t, err, "cluster write failures must propagate")
}

func TestGetClusterReports_EmptyID(t *testing.T) {
	mgr := NewManager(newMockStore())
	_, err := mgr.GetClusterReports(context.Background(), "")
	assert.Error(t, err)
}

func TestGetClusterReports_StoreError(t *testing.T) {
	store := newMockStore()
	store.fetchErr = eris.New("down")
	mgr := NewManager(store)
	_, err := mgr.GetClusterReports(context.Background(), "c1")
	assert.Error(t, err)
}
