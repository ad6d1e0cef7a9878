package handler

import (
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/core"
)

// Save handles POST /api/admin/save (§6 admin op `save`).
func Save(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Save(r.Context()); err != nil {
			respondError(w, c, err)
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true})
	}
}

// Clear handles POST /api/admin/clear (§6 admin op `clear`).
func Clear(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.ClearIndex()
		respondJSON(w, http.StatusOK, envelope{Success: true})
	}
}

// Backup handles POST /api/admin/backup (§6 admin op `backup`).
func Backup(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dir, err := c.Backup(r.Context())
		if err != nil {
			respondError(w, c, err)
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{"backupDir": dir}})
	}
}

// RemoveDuplicates handles POST /api/admin/remove-duplicates (§6 admin op
// `remove_duplicates`).
func RemoveDuplicates(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := c.RemoveDuplicates()
		if err != nil {
			respondError(w, c, err)
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]int{"removed": n}})
	}
}

// ResetLimits handles POST /api/admin/reset-limits (§6 admin op
// `reset_limits`): restores every source's rate-limit bucket and circuit
// breaker to their initial state.
func ResetLimits(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.ResetLimits()
		respondJSON(w, http.StatusOK, envelope{Success: true})
	}
}

// ClearResultCache handles POST /api/admin/clear-cache (§6 admin op
// `clear_result_cache`).
func ClearResultCache(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.ClearResultCache()
		respondJSON(w, http.StatusOK, envelope{Success: true})
	}
}

// DeduplicationStats handles GET /api/admin/dedup-stats (§6 admin op
// `deduplication_stats`).
func DeduplicationStats(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := c.DeduplicationStats(r.Context())
		if err != nil {
			respondError(w, c, err)
			return
		}
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]int{"ledgerCount": count}})
	}
}

// IndexStats handles GET /api/admin/index-stats, surfacing the vector
// index's strategy, size, and health for operational visibility (ambient,
// not named in §6 but grounded on the teacher's health/stats handler style).
func IndexStats(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, envelope{Success: true, Data: c.Index.Stats()})
	}
}
