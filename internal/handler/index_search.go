package handler

import (
	"net/http"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/core"
	"github.com/connexus-ai/ragbox-backend/internal/normalize"
	"github.com/connexus-ai/ragbox-backend/internal/vectorindex"
)

// DirectIndexSearchResponse is the §6 `direct_index_search(query, k?,
// threshold?)` response shape.
type DirectIndexSearchResponse struct {
	Results []vectorindex.Result `json:"results"`
	Count   int                  `json:"count"`
}

// DirectIndexSearch handles
// GET /api/index/search?query=...&language=...&k=...&threshold=..., embedding
// the query text after the same normalization applied to every indexed
// paper's abstract, and searching the index directly, bypassing the cache
// and federator entirely.
func DirectIndexSearch(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := q.Get("query")
		if query == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "query is required"})
			return
		}
		language := q.Get("language")
		if language == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "language is required"})
			return
		}

		k := 10
		if v := q.Get("k"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "k must be a positive integer"})
				return
			}
			k = n
		}

		threshold := c.Config.DefaultThreshold
		if v := q.Get("threshold"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 || f > 1 {
				respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "threshold must be a number in [0,1]"})
				return
			}
			threshold = f
		}

		norm := normalize.Text(query, language)
		vecs, err := c.EmbedService.Embed(r.Context(), []string{norm})
		if err != nil {
			respondError(w, c, err)
			return
		}

		results, err := c.Index.Search(vecs[0], k, float32(threshold))
		if err != nil {
			respondError(w, c, err)
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: DirectIndexSearchResponse{
			Results: results,
			Count:   len(results),
		}})
	}
}
