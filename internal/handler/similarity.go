// Package handler implements the HTTP-facing search and admin operations
// of §6, using the teacher's {success, data, error} envelope (handler
// documents.go's respondJSON/envelope shape).
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/ragbox-backend/internal/apierr"
	"github.com/connexus-ai/ragbox-backend/internal/core"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/orchestrator"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps an apierr.Kind to an HTTP status per §7 and writes the
// failure envelope, incrementing the per-error-kind counter §7 requires.
// DeadlineExceeded is never surfaced as a failing status: the orchestrator
// already returns best-effort partial results with a flag instead of an
// error for that case, so this path covers only the other four kinds.
func respondError(w http.ResponseWriter, c *core.Context, err error) {
	kind := apierr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apierr.InvalidInput:
		status = http.StatusBadRequest
	case apierr.UnsupportedOperation:
		status = http.StatusBadRequest
	case apierr.RateLimited:
		status = http.StatusTooManyRequests
	case apierr.Unavailable:
		status = http.StatusServiceUnavailable
	}
	c.Metrics.ObserveError(string(kind))
	respondJSON(w, status, envelope{Success: false, Error: err.Error()})
}

// fragmentInput is the wire shape of one [page, paragraph, text] triple in
// a similarity_search request (§6).
type fragmentInput struct {
	Page      string `json:"page"`
	Paragraph string `json:"paragraph"`
	Text      string `json:"text"`
}

// SimilaritySearchRequest is the body of POST /api/similarity-search (§6
// `similarity_search(data=[theme, language, [[page, paragraph, text], ...]],
// threshold?, use_index?, sources?)`).
type SimilaritySearchRequest struct {
	Theme     string          `json:"theme"`
	Language  string          `json:"language"`
	Fragments []fragmentInput `json:"fragments"`
	Threshold *float64        `json:"threshold,omitempty"`
	UseIndex  *bool           `json:"useIndex,omitempty"`
	Sources   []string        `json:"sources,omitempty"`
}

// SimilaritySearchResponse is the §6 response shape:
// {results, count, processed_texts, threshold_used, index_enabled}.
type SimilaritySearchResponse struct {
	Results          []model.Match `json:"results"`
	Count            int           `json:"count"`
	ProcessedTexts   int           `json:"processedTexts"`
	ThresholdUsed    float64       `json:"thresholdUsed"`
	IndexEnabled     bool          `json:"indexEnabled"`
	DeadlineExceeded bool          `json:"deadlineExceeded"`
}

// SimilaritySearch handles POST /api/similarity-search.
func SimilaritySearch(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SimilaritySearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Language == "" || len(req.Fragments) == 0 {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "language and at least one fragment are required"})
			return
		}

		threshold := c.Config.DefaultThreshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		if threshold < 0 || threshold > 1 {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "threshold must be in [0,1]"})
			return
		}
		useIndex := true
		if req.UseIndex != nil {
			useIndex = *req.UseIndex
		}

		fragments := make([]orchestrator.Fragment, len(req.Fragments))
		for i, f := range req.Fragments {
			fragments[i] = orchestrator.Fragment{Page: f.Page, Paragraph: f.Paragraph, Text: f.Text}
		}

		result, err := c.Orchestrator.RunBatch(r.Context(), fragments, req.Theme, req.Language, threshold, req.Sources, useIndex)
		if err != nil {
			respondError(w, c, err)
			return
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: SimilaritySearchResponse{
			Results:          result.Matches,
			Count:            len(result.Matches),
			ProcessedTexts:   result.ProcessedTexts,
			ThresholdUsed:    result.ThresholdUsed,
			IndexEnabled:     result.IndexEnabled,
			DeadlineExceeded: result.DeadlineExceeded,
		}})
	}
}
