package similarity

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/model"
)

// Post-save checks run against a fixed window and threshold regardless of
// the configured pre-save values.
const (
	postSaveWindowDays = 7
	postSaveThreshold  = 0.75
)

// CandidateFilter bounds a candidate fetch.
type CandidateFilter struct {
	WindowDays int
	Statuses   []model.ReportStatus
	// RequireCoords restricts candidates to reports that carry coordinates,
	// used when the submission itself has them.
	RequireCoords bool
	// ExcludeID drops one report from the candidate set (the report being
	// checked post-save).
	ExcludeID string
	Limit     int
}

// Store is the candidate-fetch dependency of the similarity service.
type Store interface {
	FetchCandidates(ctx context.Context, filter CandidateFilter) ([]model.Report, error)
}

// Service runs the pre-save and post-save duplicate checks.
type Service struct {
	store    Store
	provider *config.Provider
}

// NewService creates a similarity Service.
func NewService(store Store, provider *config.Provider) *Service {
	return &Service{store: store, provider: provider}
}

// CheckSimilarBeforeSubmit scores a not-yet-saved submission against the
// configured candidate window and returns ranked matches at or above the
// configured threshold. A store failure degrades to an empty result so a
// broken duplicate check can never block report submission.
func (s *Service) CheckSimilarBeforeSubmit(ctx context.Context, sub model.Submission) []model.ScoredCandidate {
	cfg := s.provider.Similarity()

	candidates, err := s.store.FetchCandidates(ctx, CandidateFilter{
		WindowDays:    cfg.TimeWindowDays,
		Statuses:      model.UnreviewedStatuses,
		RequireCoords: sub.Coords != nil,
	})
	if err != nil {
		zap.L().Warn("similar: candidate fetch failed, skipping duplicate check",
			zap.Error(err),
		)
		return nil
	}

	scored := scoreAll(ctx, sub, candidates, cfg)
	return FilterAndRank(scored, cfg)
}

// FindSimilarReports runs the post-save check for a saved report: a fixed
// 7-day window, threshold 0.75, and only reports a reviewer has not yet
// judged. Returns the matched reports ranked best-first. Store failures
// degrade to an empty result.
func (s *Service) FindSimilarReports(ctx context.Context, report *model.Report) []model.Report {
	cfg := s.provider.Similarity()
	cfg.TimeWindowDays = postSaveWindowDays
	cfg.Threshold = postSaveThreshold

	candidates, err := s.store.FetchCandidates(ctx, CandidateFilter{
		WindowDays: cfg.TimeWindowDays,
		Statuses:   model.UnreviewedStatuses,
		ExcludeID:  report.ID,
	})
	if err != nil {
		zap.L().Warn("similar: candidate fetch failed, skipping post-save check",
			zap.String("report_id", report.ID),
			zap.Error(err),
		)
		return nil
	}

	scored := scoreAll(ctx, model.SubmissionFromReport(report), candidates, cfg)
	ranked := FilterAndRank(scored, cfg)

	matches := make([]model.Report, 0, len(ranked))
	for _, c := range ranked {
		matches = append(matches, *c.Report)
	}

	zap.L().Debug("similar: post-save check complete",
		zap.String("report_id", report.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)
	return matches
}

// scoreAll fans candidate scoring out across available parallelism and
// fans in before ranking. Scoring is pure, so order of execution does not
// matter; results land at their candidate's index.
func scoreAll(ctx context.Context, sub model.Submission, candidates []model.Report, cfg config.SimilarityConfig) []model.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	scored := make([]model.ScoredCandidate, len(candidates))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range candidates {
		g.Go(func() error {
			scored[i] = Score(sub, &candidates[i], cfg)
			return nil
		})
	}
	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()

	return scored
}
