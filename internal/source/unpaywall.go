package source

import (
	"encoding/json"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*unpaywallAdapter)(nil)

// unpaywallAdapter queries Unpaywall's search endpoint. Unpaywall requires
// a contact email on every request; without one the adapter is skipped
// per §4.7's "sources requiring keys that are unconfigured" rule.
type unpaywallAdapter struct {
	email string
}

func newUnpaywallAdapter(email string) *unpaywallAdapter {
	return &unpaywallAdapter{email: email}
}

func (a *unpaywallAdapter) sourceName() string { return "unpaywall" }
func (a *unpaywallAdapter) configured() bool   { return a.email != "" }

func (a *unpaywallAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "https://api.unpaywall.org/v2/search",
		Params: map[string]string{
			"query": query,
			"email": a.email,
		},
	}, nil
}

type unpaywallResponse struct {
	Results []unpaywallResult `json:"results"`
}

type unpaywallResult struct {
	Response struct {
		DOI             string `json:"doi"`
		Title           string `json:"title"`
		GenreType       string `json:"genre"`
		PublishedDate   string `json:"published_date"`
		ZAuthors        []struct {
			Given  string `json:"given"`
			Family string `json:"family"`
		} `json:"z_authors"`
		BestOALocation struct {
			URLForLandingPage string `json:"url_for_landing_page"`
		} `json:"best_oa_location"`
	} `json:"response"`
}

func (a *unpaywallAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp unpaywallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unpaywall: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Results))
	for _, r := range resp.Results {
		var authors []string
		for _, au := range r.Response.ZAuthors {
			if name := joinAuthorName(au.Given, au.Family); name != "" {
				authors = append(authors, name)
			}
		}
		out = append(out, model.Paper{
			Title:           r.Response.Title,
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    r.Response.GenreType,
			PublicationDate: r.Response.PublishedDate,
			DOI:             r.Response.DOI,
			URL:             r.Response.BestOALocation.URLForLandingPage,
		})
	}
	return out, nil
}
