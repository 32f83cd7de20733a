package similarity

import (
	"sort"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/model"
)

// FilterAndRank drops candidates below the threshold, orders the rest by
// score descending with geo distance ascending as the tiebreaker (missing
// distance sorts last), and truncates to topN. Deterministic for identical
// inputs: the final tiebreaker is the report ID.
func FilterAndRank(candidates []model.ScoredCandidate, cfg config.SimilarityConfig) []model.ScoredCandidate {
	kept := make([]model.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= cfg.Threshold {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		// Distance is +Inf when undefined, which naturally sorts last.
		if kept[i].Distance != kept[j].Distance {
			return kept[i].Distance < kept[j].Distance
		}
		return kept[i].Report.ID < kept[j].Report.ID
	})

	if cfg.TopN > 0 && len(kept) > cfg.TopN {
		kept = kept[:cfg.TopN]
	}
	return kept
}
