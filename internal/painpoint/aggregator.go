// Package painpoint surfaces clusters of recurring similar reports that
// are large enough to indicate a systemic problem area.
package painpoint

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/similarity"
	"github.com/fieldsafe/hazard-engine/internal/textsim"
)

// maxPairwiseMembers caps the pairwise similarity recomputation. Above
// this the O(n²) average is computed over the newest members only.
const maxPairwiseMembers = 25

// Store is the persistence dependency of the aggregator.
type Store interface {
	FetchAllClusterAssignments(ctx context.Context) ([]model.ClusterAssignment, error)
	FetchByClusterID(ctx context.Context, clusterID string) ([]model.Report, error)
}

// Aggregator computes pain-point summaries from cluster assignments.
// Summaries are recomputed on every call and never persisted.
type Aggregator struct {
	store    Store
	provider *config.Provider
}

// NewAggregator creates an Aggregator.
func NewAggregator(store Store, provider *config.Provider) *Aggregator {
	return &Aggregator{store: store, provider: provider}
}

// GetPainPoints scans all cluster assignments and returns a summary for
// every cluster with at least MinClusterSize members, ordered by member
// count descending. All aggregates are derived from the actual membership.
func (a *Aggregator) GetPainPoints(ctx context.Context) ([]model.PainPointCluster, error) {
	cfg := a.provider.Similarity()

	assignments, err := a.store.FetchAllClusterAssignments(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "painpoint: scan cluster assignments")
	}

	counts := make(map[string]int)
	for _, as := range assignments {
		counts[as.ClusterID]++
	}

	qualifying := make([]string, 0, len(counts))
	for clusterID, n := range counts {
		if n >= cfg.MinClusterSize {
			qualifying = append(qualifying, clusterID)
		}
	}
	sort.Strings(qualifying)

	results := make([]model.PainPointCluster, len(qualifying))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, clusterID := range qualifying {
		g.Go(func() error {
			members, err := a.store.FetchByClusterID(gctx, clusterID)
			if err != nil {
				return eris.Wrapf(err, "painpoint: fetch members of %s", clusterID)
			}
			results[i] = summarize(clusterID, members, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MemberCount != results[j].MemberCount {
			return results[i].MemberCount > results[j].MemberCount
		}
		return results[i].ClusterID < results[j].ClusterID
	})
	return results, nil
}

// summarize computes the descriptive aggregates for one cluster.
func summarize(clusterID string, members []model.Report, cfg config.SimilarityConfig) model.PainPointCluster {
	ids := make([]string, 0, len(members))
	locations := make(map[string]int)
	categories := make(map[string]int)
	for _, m := range members {
		ids = append(ids, m.ID)
		if loc := textsim.Normalize(m.LocationName); loc != "" {
			locations[loc]++
		}
		if cat := textsim.Normalize(m.NonCompliance); cat != "" {
			categories[cat]++
		}
	}
	sort.Strings(ids)

	return model.PainPointCluster{
		ClusterID:        clusterID,
		MemberCount:      len(members),
		ReportIDs:        ids,
		DominantLocation: mostFrequent(locations),
		DominantCategory: mostFrequent(categories),
		AvgPairwiseScore: avgPairwiseScore(members, cfg),
	}
}

// avgPairwiseScore recomputes the mean similarity over member pairs using
// the same scorer the duplicate checks use. Large clusters are sampled to
// their newest members to keep the recomputation cheap.
func avgPairwiseScore(members []model.Report, cfg config.SimilarityConfig) float64 {
	if len(members) < 2 {
		return 0
	}

	if len(members) > maxPairwiseMembers {
		sorted := make([]model.Report, len(members))
		copy(sorted, members)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		})
		members = sorted[:maxPairwiseMembers]
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(members); i++ {
		sub := model.SubmissionFromReport(&members[i])
		for j := i + 1; j < len(members); j++ {
			sum += similarity.Score(sub, &members[j], cfg).Score
			pairs++
		}
	}
	return sum / float64(pairs)
}

// mostFrequent returns the highest-count key, breaking ties
// lexicographically for determinism.
func mostFrequent(counts map[string]int) string {
	best := ""
	bestCount := 0
	for k, n := range counts {
		if n > bestCount || (n == bestCount && (best == "" || k < best)) {
			best = k
			bestCount = n
		}
	}
	return best
}
