package similarity

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/model"
)

func newTestService(store Store) *Service {
	return NewService(store, config.NewProvider(testConfig(), nil))
}

func TestCheckSimilarBeforeSubmit_FlagsDuplicate(t *testing.T) {
	dup := *candidateReport("dup")
	unrelated := model.Report{
		ID:                 "other",
		LocationName:       "Kantor Pusat",
		NonCompliance:      "Environment",
		SubNonCompliance:   "Waste",
		FindingDescription: "tumpahan limbah di saluran air",
		Status:             model.StatusPendingReview,
		CreatedAt:          time.Now().Add(-24 * time.Hour),
	}
	store := &mockStore{candidates: []model.Report{unrelated, dup}}

	sub := model.SubmissionFromReport(&dup)
	got := newTestService(store).CheckSimilarBeforeSubmit(context.Background(), sub)

	require.Len(t, got, 1)
	assert.Equal(t, "dup", got[0].Report.ID)
	assert.GreaterOrEqual(t, got[0].Score, 0.75)
}

func TestCheckSimilarBeforeSubmit_StoreErrorDegrades(t *testing.T) {
	store := &mockStore{err: eris.New("connection refused")}

	got := newTestService(store).CheckSimilarBeforeSubmit(context.Background(), model.Submission{
		LocationName: "Warehouse B",
	})
	assert.Empty(t, got, "a store failure must never block submission")
}

func TestCheckSimilarBeforeSubmit_RequiresCoordsWhenSubmissionHasThem(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(store)

	svc.CheckSimilarBeforeSubmit(context.Background(), model.Submission{
		Coords: &model.Coordinates{Latitude: -6.2, Longitude: 106.8},
	})
	assert.True(t, store.lastFilter.RequireCoords)

	svc.CheckSimilarBeforeSubmit(context.Background(), model.Submission{})
	assert.False(t, store.lastFilter.RequireCoords)
}

func TestFindSimilarReports_FixedWindow(t *testing.T) {
	report := candidateReport("self")
	store := &mockStore{candidates: []model.Report{*report}}
	svc := newTestService(store)

	got := svc.FindSimilarReports(context.Background(), report)

	// The only candidate is the report itself, which is excluded.
	assert.Empty(t, got)
	assert.Equal(t, postSaveWindowDays, store.lastFilter.WindowDays)
	assert.Equal(t, "self", store.lastFilter.ExcludeID)
	assert.Equal(t, model.UnreviewedStatuses, store.lastFilter.Statuses)
}

func TestFindSimilarReports_RanksMatches(t *testing.T) {
	report := candidateReport("new")
	exact := *candidateReport("exact")
	near := *candidateReport("near")
	near.FindingDescription = "Oil spill near the loading bay"

	store := &mockStore{candidates: []model.Report{near, exact}}
	got := newTestService(store).FindSimilarReports(context.Background(), report)

	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "near", got[1].ID)
}

func TestFindSimilarReports_StoreErrorDegrades(t *testing.T) {
	store := &mockStore{err: eris.New("timeout")}
	got := newTestService(store).FindSimilarReports(context.Background(), candidateReport("r"))
	assert.Empty(t, got)
}

func TestScoreAll_Parallel(t *testing.T) {
	cfg := testConfig()
	cand := candidateReport("base")
	sub := model.SubmissionFromReport(cand)

	candidates := make([]model.Report, 200)
	for i := range candidates {
		candidates[i] = *cand
	}

	scored := scoreAll(context.Background(), sub, candidates, cfg)
	require.Len(t, scored, 200)
	for _, c := range scored {
		assert.InDelta(t, 1.0, c.Score, 0.001)
	}
}
