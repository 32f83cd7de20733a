// Package store persists hazard reports, cluster assignments, and
// knowledge-base chunks. Two backends are provided: PostgreSQL with
// pgvector for production and SQLite for local runs.
package store

import (
	"context"

	"github.com/fieldsafe/hazard-engine/internal/model"
	"github.com/fieldsafe/hazard-engine/internal/similarity"
)

// Store defines the persistence interface for the similarity engine.
type Store interface {
	// Reports
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	FetchCandidates(ctx context.Context, filter similarity.CandidateFilter) ([]model.Report, error)
	ImportReports(ctx context.Context, reports []model.Report) (int64, error)

	// Clusters
	AssignCluster(ctx context.Context, reportIDs []string, proposedID string) (string, error)
	FetchByClusterID(ctx context.Context, clusterID string) ([]model.Report, error)
	FetchAllClusterAssignments(ctx context.Context) ([]model.ClusterAssignment, error)

	// Knowledge base
	InsertChunks(ctx context.Context, chunks []model.Chunk) error
	VectorTopK(ctx context.Context, knowledgeBaseID string, query []float32, k int) ([]model.Chunk, error)
	FetchChunks(ctx context.Context, knowledgeBaseID string, limit int) ([]model.Chunk, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// defaultCandidateLimit bounds unfiltered candidate fetches.
const defaultCandidateLimit = 500
