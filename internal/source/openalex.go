package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*openAlexAdapter)(nil)

// openAlexAdapter queries the OpenAlex works API. A contact email, if
// configured, is sent via the "mailto" param for the polite pool.
type openAlexAdapter struct {
	email string
}

func newOpenAlexAdapter(email string) *openAlexAdapter {
	return &openAlexAdapter{email: email}
}

func (a *openAlexAdapter) sourceName() string { return "openalex" }
func (a *openAlexAdapter) configured() bool   { return true }

func (a *openAlexAdapter) buildRequest(query, theme, language string) (Request, error) {
	params := map[string]string{
		"search":   query,
		"per-page": "20",
	}
	if a.email != "" {
		params["mailto"] = a.email
	}
	return Request{URL: "https://api.openalex.org/works", Params: params}, nil
}

type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	Title                   string                 `json:"title"`
	DOI                     string                 `json:"doi"`
	Type                    string                 `json:"type"`
	PublicationDate         string                 `json:"publication_date"`
	AbstractInvertedIndex   map[string][]int       `json:"abstract_inverted_index"`
	Authorships             []openAlexAuthorship   `json:"authorships"`
	PrimaryLocation         struct {
		LandingPageURL string `json:"landing_page_url"`
	} `json:"primary_location"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

func (a *openAlexAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp openAlexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openalex: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Results))
	for _, w := range resp.Results {
		var authors []string
		for _, au := range w.Authorships {
			if au.Author.DisplayName != "" {
				authors = append(authors, au.Author.DisplayName)
			}
		}
		out = append(out, model.Paper{
			Title:           w.Title,
			Abstract:        reconstructAbstract(w.AbstractInvertedIndex),
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    w.Type,
			PublicationDate: w.PublicationDate,
			DOI:             strings.TrimPrefix(w.DOI, "https://doi.org/"),
			URL:             w.PrimaryLocation.LandingPageURL,
		})
	}
	return out, nil
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index
// representation (word -> list of positions).
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	maxPos := 0
	for _, positions := range index {
		for _, p := range positions {
			if p > maxPos {
				maxPos = p
			}
		}
	}
	words := make([]string, maxPos+1)
	for word, positions := range index {
		for _, p := range positions {
			words[p] = word
		}
	}
	// Positions not covered by any word stay empty; filtering compacts
	// them out while preserving relative order.
	var nonEmpty []string
	for _, w := range words {
		if w != "" {
			nonEmpty = append(nonEmpty, w)
		}
	}
	return strings.Join(nonEmpty, " ")
}
