package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fieldsafe/hazard-engine/internal/cluster"
	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/painpoint"
	"github.com/fieldsafe/hazard-engine/internal/retrieval"
	"github.com/fieldsafe/hazard-engine/internal/similarity"
	"github.com/fieldsafe/hazard-engine/internal/store"
)

// engineEnv bundles the wired services commands run against.
type engineEnv struct {
	Store      store.Store
	Provider   *config.Provider
	Similarity *similarity.Service
	Clusters   *cluster.Manager
	PainPoints *painpoint.Aggregator
	Retrieval  *retrieval.Ranker
}

func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "hazard.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine validates the similarity configuration and wires every
// service onto one store.
func initEngine(ctx context.Context) (*engineEnv, error) {
	simCfg := cfg.Similarity
	if err := simCfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	// Similarity tuning is reloadable: the source re-reads the config
	// file/env so threshold and weight changes apply without a restart.
	source := config.SourceFunc(func(ctx context.Context) (config.SimilarityConfig, error) {
		c, err := config.Load()
		if err != nil {
			return config.SimilarityConfig{}, err
		}
		return c.Similarity, nil
	})
	provider := config.NewProvider(simCfg, source)

	return &engineEnv{
		Store:      st,
		Provider:   provider,
		Similarity: similarity.NewService(st, provider),
		Clusters:   cluster.NewManager(st),
		PainPoints: painpoint.NewAggregator(st, provider),
		Retrieval:  retrieval.NewRanker(st),
	}, nil
}
