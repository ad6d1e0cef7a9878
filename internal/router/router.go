// Package router wires the HTTP routes onto a chi.Mux, grounded on the
// teacher's router.New(deps) shape.
package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/ragbox-backend/internal/core"
	"github.com/connexus-ai/ragbox-backend/internal/handler"
	"github.com/connexus-ai/ragbox-backend/internal/middleware"
)

// Dependencies holds everything the router needs beyond the core Context:
// process metadata and the optional general rate limiter. Authentication is
// out of scope for this service (§1) so, unlike the teacher's router, no
// auth middleware gates any route.
type Dependencies struct {
	Core               *core.Context
	Version            string
	GeneralRateLimiter *middleware.RateLimiter
}

// New creates and configures the chi router with every §6 search and admin
// route plus the ambient health/metrics endpoints.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.Core.Config.FrontendURL))
	if deps.Core.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Core.Metrics))
	}

	r.Get("/api/health", handler.Health(deps.Core, deps.Version))
	if deps.Core.Registry != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.Core.Registry))
	}

	r.Group(func(r chi.Router) {
		if deps.GeneralRateLimiter != nil {
			r.Use(middleware.RateLimit(deps.GeneralRateLimiter))
		}
		timeout30s := middleware.Timeout(30 * time.Second)
		timeout60s := middleware.Timeout(60 * time.Second)

		r.With(timeout30s).Post("/api/similarity-search", handler.SimilaritySearch(deps.Core))
		r.With(timeout60s).Post("/api/plagiarism-check", handler.PlagiarismCheck(deps.Core))
		r.With(timeout30s).Get("/api/index/search", handler.DirectIndexSearch(deps.Core))

		r.With(timeout30s).Post("/api/admin/save", handler.Save(deps.Core))
		r.With(timeout30s).Post("/api/admin/clear", handler.Clear(deps.Core))
		r.With(timeout30s).Post("/api/admin/backup", handler.Backup(deps.Core))
		r.With(timeout30s).Post("/api/admin/remove-duplicates", handler.RemoveDuplicates(deps.Core))
		r.With(timeout30s).Post("/api/admin/reset-limits", handler.ResetLimits(deps.Core))
		r.With(timeout30s).Post("/api/admin/clear-cache", handler.ClearResultCache(deps.Core))
		r.With(timeout30s).Get("/api/admin/dedup-stats", handler.DeduplicationStats(deps.Core))
		r.With(timeout30s).Get("/api/admin/index-stats", handler.IndexStats(deps.Core))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "route not found",
		})
	})

	return r
}
