// Package retrieval selects the most relevant knowledge-base chunks for a
// query embedding by cosine similarity. It performs pure ranking over
// externally supplied vectors: no text generation, no categorical calls.
package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fieldsafe/hazard-engine/internal/model"
)

// Store is the vector-query dependency of the ranker. VectorTopK uses the
// store's native similarity search; FetchChunks is the unranked fallback.
type Store interface {
	VectorTopK(ctx context.Context, knowledgeBaseID string, query []float32, k int) ([]model.Chunk, error)
	FetchChunks(ctx context.Context, knowledgeBaseID string, limit int) ([]model.Chunk, error)
}

// Ranker ranks knowledge-base chunks against query embeddings.
type Ranker struct {
	store Store
}

// NewRanker creates a Ranker.
func NewRanker(store Store) *Ranker {
	return &Ranker{store: store}
}

// Retrieve returns up to topK chunks of one knowledge base ranked by
// cosine similarity against the query vector, best first. If the store's
// similarity query fails the result degrades to an unranked sample of up
// to topK chunks (zero scores) instead of an error; only a failed fallback
// is reported.
func (r *Ranker) Retrieve(ctx context.Context, query []float32, knowledgeBaseID string, topK int) ([]model.RetrievalResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	chunks, err := r.store.VectorTopK(ctx, knowledgeBaseID, query, topK)
	if err != nil {
		zap.L().Warn("retrieve: vector query failed, falling back to unranked chunks",
			zap.String("knowledge_base_id", knowledgeBaseID),
			zap.Error(err),
		)
		fallback, ferr := r.store.FetchChunks(ctx, knowledgeBaseID, topK)
		if ferr != nil {
			return nil, eris.Wrapf(ferr, "retrieve: fallback fetch for %s", knowledgeBaseID)
		}
		results := make([]model.RetrievalResult, 0, len(fallback))
		for i := range fallback {
			results = append(results, model.RetrievalResult{Chunk: &fallback[i]})
		}
		return results, nil
	}

	return rank(query, chunks, topK), nil
}

// RetrieveAll runs Retrieve for several knowledge bases in parallel. A
// failure on one knowledge base never prevents retrieval from the others;
// failed bases are simply absent from the result map.
func (r *Ranker) RetrieveAll(ctx context.Context, query []float32, knowledgeBaseIDs []string, topK int) map[string][]model.RetrievalResult {
	results := make([]([]model.RetrievalResult), len(knowledgeBaseIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, kbID := range knowledgeBaseIDs {
		g.Go(func() error {
			res, err := r.Retrieve(gctx, query, kbID, topK)
			if err != nil {
				zap.L().Warn("retrieve: knowledge base skipped",
					zap.String("knowledge_base_id", kbID),
					zap.Error(err),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]model.RetrievalResult, len(knowledgeBaseIDs))
	for i, kbID := range knowledgeBaseIDs {
		if results[i] != nil {
			out[kbID] = results[i]
		}
	}
	return out
}

// rank scores every chunk against the query and returns the topK best.
// Chunks without an embedding keep the store's ordering intent at zero
// similarity and sort last.
func rank(query []float32, chunks []model.Chunk, topK int) []model.RetrievalResult {
	results := make([]model.RetrievalResult, 0, len(chunks))
	for i := range chunks {
		results = append(results, model.RetrievalResult{
			Chunk:      &chunks[i],
			Similarity: Cosine(query, chunks[i].Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Cosine computes the cosine similarity of two vectors. Mismatched
// lengths or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
