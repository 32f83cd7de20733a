package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fieldsafe/hazard-engine/internal/config"
	"github.com/fieldsafe/hazard-engine/internal/model"
)

// newRouter builds the HTTP API over a wired engine.
func newRouter(env *engineEnv, serverCfg config.ServerConfig, retrievalCfg config.RetrievalConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimiter(serverCfg))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/reports/check-similar", handleCheckSimilar(env))
		r.Get("/reports/{id}/similar", handleReportSimilar(env))
		r.Post("/reports/{id}/evaluate", handleReportEvaluate(env))
		r.Get("/pain-points", handlePainPoints(env))
		r.Post("/retrieve", handleRetrieve(env, retrievalCfg))
	})

	return r
}

// rateLimiter applies a global token-bucket limit so a misbehaving client
// cannot saturate the scoring fan-out.
func rateLimiter(serverCfg config.ServerConfig) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(serverCfg.RatePerSecond), serverCfg.RateBurst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// handleCheckSimilar runs the pre-save duplicate check on a submission.
// The response is always 200: a degraded check returns an empty match
// list, never an error, so submission flows are never blocked.
func handleCheckSimilar(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub model.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if sub.LocationName == "" && sub.FindingDescription == "" {
			writeError(w, http.StatusBadRequest, "location_name or finding_description is required")
			return
		}

		matches := env.Similarity.CheckSimilarBeforeSubmit(r.Context(), sub)
		writeJSON(w, http.StatusOK, map[string]any{
			"matches": emptyIfNil(matches),
		})
	}
}

// handleReportSimilar runs the post-save check for a stored report.
func handleReportSimilar(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		report, err := env.Store.GetReport(r.Context(), id)
		if err != nil {
			zap.L().Error("api: get report failed", zap.String("report_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
		if report == nil {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}

		matches := env.Similarity.FindSimilarReports(r.Context(), report)
		writeJSON(w, http.StatusOK, map[string]any{
			"report_id": id,
			"matches":   emptyIfNil(matches),
		})
	}
}

// handleReportEvaluate runs the post-save check and, when matches exist,
// groups the report with them under one cluster.
func handleReportEvaluate(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		report, err := env.Store.GetReport(r.Context(), id)
		if err != nil {
			zap.L().Error("api: get report failed", zap.String("report_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
		if report == nil {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}

		matches := env.Similarity.FindSimilarReports(r.Context(), report)
		resp := map[string]any{
			"report_id": id,
			"matches":   emptyIfNil(matches),
		}

		if len(matches) > 0 {
			group := append([]model.Report{*report}, matches...)
			clusterID, err := env.Clusters.CreateCluster(r.Context(), group)
			if err != nil {
				zap.L().Error("api: cluster assignment failed", zap.String("report_id", id), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "cluster assignment failed")
				return
			}
			resp["cluster_id"] = clusterID
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handlePainPoints(env *engineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		points, err := env.PainPoints.GetPainPoints(r.Context())
		if err != nil {
			zap.L().Error("api: pain point scan failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "pain point scan failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"pain_points": emptyIfNil(points),
		})
	}
}

func handleRetrieve(env *engineEnv, retrievalCfg config.RetrievalConfig) http.HandlerFunc {
	type request struct {
		Query            []float32 `json:"query"`
		KnowledgeBaseIDs []string  `json:"knowledge_base_ids"`
		TopK             int       `json:"top_k"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Query) == 0 {
			writeError(w, http.StatusBadRequest, "query vector is required")
			return
		}
		if len(req.KnowledgeBaseIDs) == 0 {
			writeError(w, http.StatusBadRequest, "knowledge_base_ids is required")
			return
		}
		topK := req.TopK
		if topK <= 0 {
			topK = retrievalCfg.DefaultTopK
		}

		results := env.Retrieval.RetrieveAll(r.Context(), req.Query, req.KnowledgeBaseIDs, topK)
		writeJSON(w, http.StatusOK, map[string]any{
			"results": results,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// emptyIfNil keeps JSON arrays as [] instead of null for empty results.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
