package config

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Source supplies the current similarity configuration from an external
// provider (config service, database table, file). Implementations may be
// slow; the Provider caches the last good value.
type Source interface {
	Fetch(ctx context.Context) (SimilarityConfig, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (SimilarityConfig, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context) (SimilarityConfig, error) { return f(ctx) }

// Provider hands out the similarity configuration as an explicit
// dependency. Unlike a module-level singleton with an implicit TTL,
// refresh is an explicit call owned by the caller; callers that want
// periodic refresh run it on their own schedule.
type Provider struct {
	mu      sync.RWMutex
	current SimilarityConfig
	source  Source
}

// NewProvider creates a Provider seeded with an initial configuration.
// Source may be nil, in which case Refresh is a no-op and the seed value
// is permanent.
func NewProvider(initial SimilarityConfig, source Source) *Provider {
	return &Provider{current: initial, source: source}
}

// Similarity returns the current similarity configuration.
func (p *Provider) Similarity() SimilarityConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Refresh re-fetches the configuration from the source. On fetch or
// validation failure the previous value is kept and the error returned.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.source == nil {
		return nil
	}

	next, err := p.source.Fetch(ctx)
	if err != nil {
		return eris.Wrap(err, "config: refresh")
	}
	if err := next.Validate(); err != nil {
		return eris.Wrap(err, "config: refresh")
	}

	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	zap.L().Info("config: similarity configuration refreshed",
		zap.Float64("threshold", next.Threshold),
		zap.Int("time_window_days", next.TimeWindowDays),
	)
	return nil
}

// Run refreshes the configuration on a fixed interval until ctx is
// cancelled. Refresh failures are logged and the loop keeps going with
// the last good value. Returns immediately when no source is configured.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	if p.source == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "config.provider"))
	log.Info("starting config refresh loop", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("config refresh loop stopped")
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				log.Warn("config refresh failed, keeping previous value", zap.Error(err))
			}
		}
	}
}
