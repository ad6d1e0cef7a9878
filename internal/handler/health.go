package handler

import (
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/core"
)

// Health reports process and index health. GET /api/health — no auth, per
// the teacher's Health handler shape, adapted to report index state
// instead of a database ping since this service has no user database.
func Health(c *core.Context, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := c.Index.Stats()
		status := "ok"
		httpStatus := http.StatusOK
		if stats.Corrupted {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		respondJSON(w, httpStatus, map[string]interface{}{
			"status":  status,
			"version": version,
			"index": map[string]interface{}{
				"strategy":  stats.Strategy,
				"count":     stats.Count,
				"corrupted": stats.Corrupted,
				"readOnly":  stats.ReadOnly,
			},
		})
	}
}
