package source

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*coreAdapter)(nil)

// coreAdapter queries the CORE search API, which requires an API key.
// Sources requiring keys that are unconfigured are skipped per §4.7.
type coreAdapter struct {
	apiKey string
}

func newCoreAdapter(apiKey string) *coreAdapter {
	return &coreAdapter{apiKey: apiKey}
}

func (a *coreAdapter) sourceName() string { return "core" }
func (a *coreAdapter) configured() bool   { return a.apiKey != "" }

func (a *coreAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "https://api.core.ac.uk/v3/search/works/" + url.PathEscape(query),
		Params: map[string]string{
			"limit": "20",
		},
		Headers: map[string]string{
			"Authorization": "Bearer " + a.apiKey,
		},
	}, nil
}

type coreResponse struct {
	Results []coreResult `json:"results"`
}

type coreResult struct {
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	Authors     []string `json:"authors"`
	DocumentType string  `json:"documentType"`
	PublishedDate string `json:"publishedDate"`
	DOI         string   `json:"doi"`
	DownloadURL string   `json:"downloadUrl"`
}

func (a *coreAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp coreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("core: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, model.Paper{
			Title:           r.Title,
			Abstract:        r.Abstract,
			Authors:         r.Authors,
			Source:          a.sourceName(),
			DocumentType:    r.DocumentType,
			PublicationDate: r.PublishedDate,
			DOI:             r.DOI,
			URL:             r.DownloadURL,
		})
	}
	return out, nil
}
