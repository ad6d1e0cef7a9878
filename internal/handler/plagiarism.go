package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/core"
	"github.com/connexus-ai/ragbox-backend/internal/fragment"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/orchestrator"
)

// PlagiarismCheckRequest is the body of POST /api/plagiarism-check (§6
// `plagiarism_check(..., chunk_mode in {sentences, sliding}, min_chunk_words?)`).
type PlagiarismCheckRequest struct {
	Theme         string   `json:"theme"`
	Language      string   `json:"language"`
	Page          string   `json:"page"`
	Text          string   `json:"text"`
	ChunkMode     string   `json:"chunkMode"`
	MinChunkWords int      `json:"minChunkWords,omitempty"`
	WindowWords   int      `json:"windowWords,omitempty"`
	OverlapWords  int      `json:"overlapWords,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
	UseIndex      *bool    `json:"useIndex,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// BandAggregate groups every match falling in one plagiarism band.
type BandAggregate struct {
	Band       model.Band    `json:"band"`
	ChunkCount int           `json:"chunkCount"`
	Matches    []model.Match `json:"matches"`
}

// PlagiarismCheckResponse aggregates similarity results by band, per §6.
// Chunks with no match above the minimal floor (§3's band classification)
// are not represented in ByBand, since they contribute no evidence of
// plagiarism; TotalChunks still counts them.
type PlagiarismCheckResponse struct {
	ByBand             []BandAggregate `json:"byBand"`
	TotalChunks        int             `json:"totalChunks"`
	PlagiarismDetected bool            `json:"plagiarismDetected"`
	DeadlineExceeded   bool            `json:"deadlineExceeded"`
}

// bandOrder fixes a deterministic, severity-descending iteration order for
// aggregation output.
var bandOrder = []model.Band{
	model.BandVeryHigh, model.BandHigh, model.BandModerate, model.BandLow, model.BandMinimal,
}

// PlagiarismCheck handles POST /api/plagiarism-check: it chunks the
// submitted text (§4.11), runs the chunks through the same orchestrator
// batch pipeline as similarity_search, then groups the resulting matches
// by plagiarism band rather than returning them per-fragment.
func PlagiarismCheck(c *core.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlagiarismCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid request body"})
			return
		}
		if req.Language == "" || req.Text == "" {
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "language and text are required"})
			return
		}

		var chunks []fragment.Chunk
		switch req.ChunkMode {
		case "", "sentences":
			minWords := req.MinChunkWords
			if minWords <= 0 {
				minWords = 5
			}
			chunks = fragment.Sentences(req.Text, minWords)
		case "sliding":
			window, overlap := req.WindowWords, req.OverlapWords
			if window <= 0 {
				window = 40
			}
			if overlap <= 0 {
				overlap = window / 2
			}
			var err error
			chunks, err = fragment.Sliding(req.Text, window, overlap)
			if err != nil {
				respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
				return
			}
		default:
			respondJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "chunkMode must be sentences or sliding"})
			return
		}

		fragments := make([]orchestrator.Fragment, len(chunks))
		for i, ch := range chunks {
			fragments[i] = orchestrator.Fragment{Page: req.Page, Paragraph: strconv.Itoa(ch.Index), Text: ch.Text}
		}

		threshold := c.Config.DefaultThreshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		useIndex := true
		if req.UseIndex != nil {
			useIndex = *req.UseIndex
		}

		result, err := c.Orchestrator.RunBatch(r.Context(), fragments, req.Theme, req.Language, threshold, req.Sources, useIndex)
		if err != nil {
			respondError(w, c, err)
			return
		}

		byBand := make(map[model.Band][]model.Match)
		for _, m := range result.Matches {
			byBand[m.PlagiarismBand] = append(byBand[m.PlagiarismBand], m)
		}
		var aggregates []BandAggregate
		var detected bool
		for _, band := range bandOrder {
			matches, ok := byBand[band]
			if !ok {
				continue
			}
			if band == model.BandVeryHigh || band == model.BandHigh {
				detected = true
			}
			chunksInBand := make(map[string]struct{}, len(matches))
			for _, m := range matches {
				chunksInBand[m.OriginatingPara] = struct{}{}
			}
			aggregates = append(aggregates, BandAggregate{Band: band, ChunkCount: len(chunksInBand), Matches: matches})
		}

		respondJSON(w, http.StatusOK, envelope{Success: true, Data: PlagiarismCheckResponse{
			ByBand:             aggregates,
			TotalChunks:        len(chunks),
			PlagiarismDetected: detected,
			DeadlineExceeded:   result.DeadlineExceeded,
		}})
	}
}
