// Package cluster assigns shared cluster identities to groups of mutually
// similar hazard reports.
package cluster

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/resilience"
)

// Store is the persistence dependency of the cluster manager. AssignCluster
// must be transactional over the given report rows: lock them, look at any
// cluster IDs they already carry, pick one per the reuse policy (largest
// existing cluster wins), or fall back to proposedID when none exist, then
// stamp every report with the chosen ID. The chosen ID is returned.
type Store interface {
	AssignCluster(ctx context.Context, reportIDs []string, proposedID string) (string, error)
	FetchByClusterID(ctx context.Context, clusterID string) ([]model.Report, error)
}

// Manager creates clusters and reads their membership.
//
// Two submissions arriving concurrently can each discover the same set of
// matches; without a transaction both would mint a cluster for one group.
// The store's row-lock transaction plus retry on serialization conflicts
// guarantees at most one cluster per truly-connected group: the loser of
// the race re-reads the rows and reuses the winner's cluster ID.
type Manager struct {
	store Store
	retry resilience.RetryConfig
}

// NewManager creates a cluster Manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store, retry: resilience.DefaultRetryConfig()}
}

// CreateCluster groups the given reports under one cluster ID and returns
// it. When some reports already belong to existing clusters the largest of
// those is reused instead of minting a new identity, so repeat assignments
// converge rather than split (reuse policy for the multi-cluster case).
// Failures are fatal to the caller: a failed cluster write is a data
// consistency problem, not something to degrade over.
func (m *Manager) CreateCluster(ctx context.Context, reports []model.Report) (string, error) {
	if len(reports) < 2 {
		return "", eris.New("cluster: need at least two reports to form a cluster")
	}

	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		if r.ID == "" {
			return "", eris.New("cluster: report without ID")
		}
		ids = append(ids, r.ID)
	}

	proposed := uuid.NewString()

	clusterID, err := resilience.DoVal(ctx, m.retry, func(ctx context.Context) (string, error) {
		return m.store.AssignCluster(ctx, ids, proposed)
	})
	if err != nil {
		return "", eris.Wrap(err, "cluster: assign")
	}

	zap.L().Info("cluster: reports assigned",
		zap.String("cluster_id", clusterID),
		zap.Int("members", len(ids)),
		zap.Bool("reused_existing", clusterID != proposed),
	)
	return clusterID, nil
}

// GetClusterReports returns the current membership of a cluster.
func (m *Manager) GetClusterReports(ctx context.Context, clusterID string) ([]model.Report, error) {
	if clusterID == "" {
		return nil, eris.New("cluster: empty cluster ID")
	}
	reports, err := m.store.FetchByClusterID(ctx, clusterID)
	if err != nil {
		return nil, eris.Wrapf(err, "cluster: fetch members of %s", clusterID)
	}
	return reports, nil
}
