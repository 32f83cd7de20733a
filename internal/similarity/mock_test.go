package similarity

import (
	"context"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

// mockStore implements Store for testing.
type mockStore struct {
	candidates []model.Report
	err        error
	lastFilter CandidateFilter
}

func (m *mockStore) FetchCandidates(_ context.Context, filter CandidateFilter) ([]model.Report, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}

	out := make([]model.Report, 0, len(m.candidates))
	for _, r := range m.candidates {
		if filter.ExcludeID != "" && r.ID == filter.ExcludeID {
			continue
		}
		if filter.RequireCoords && r.Coords == nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
