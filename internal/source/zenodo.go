package source

import (
	"encoding/json"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*zenodoAdapter)(nil)

// zenodoAdapter queries the Zenodo records search API. A key raises the
// rate limit but is optional for public search.
type zenodoAdapter struct {
	apiKey string
}

func newZenodoAdapter(apiKey string) *zenodoAdapter {
	return &zenodoAdapter{apiKey: apiKey}
}

func (a *zenodoAdapter) sourceName() string { return "zenodo" }
func (a *zenodoAdapter) configured() bool   { return true }

func (a *zenodoAdapter) buildRequest(query, theme, language string) (Request, error) {
	params := map[string]string{
		"q":     query,
		"size":  "20",
	}
	if a.apiKey != "" {
		params["access_token"] = a.apiKey
	}
	return Request{URL: "https://zenodo.org/api/records", Params: params}, nil
}

type zenodoResponse struct {
	Hits struct {
		Hits []zenodoRecord `json:"hits"`
	} `json:"hits"`
}

type zenodoRecord struct {
	Metadata struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		PublicationDate string `json:"publication_date"`
		ResourceType  struct {
			Type string `json:"type"`
		} `json:"resource_type"`
		Creators []struct {
			Name string `json:"name"`
		} `json:"creators"`
		DOI string `json:"doi"`
	} `json:"metadata"`
	Links struct {
		HTML string `json:"html"`
	} `json:"links"`
}

func (a *zenodoAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp zenodoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("zenodo: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Hits.Hits))
	for _, r := range resp.Hits.Hits {
		var authors []string
		for _, c := range r.Metadata.Creators {
			authors = append(authors, c.Name)
		}
		out = append(out, model.Paper{
			Title:           r.Metadata.Title,
			Abstract:        r.Metadata.Description,
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    r.Metadata.ResourceType.Type,
			PublicationDate: r.Metadata.PublicationDate,
			DOI:             r.Metadata.DOI,
			URL:             r.Links.HTML,
		})
	}
	return out, nil
}
