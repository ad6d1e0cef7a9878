package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*europePMCAdapter)(nil)

// europePMCAdapter queries the Europe PMC REST search API. No key required.
type europePMCAdapter struct{}

func newEuropePMCAdapter() *europePMCAdapter { return &europePMCAdapter{} }

func (a *europePMCAdapter) sourceName() string { return "europepmc" }
func (a *europePMCAdapter) configured() bool   { return true }

func (a *europePMCAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "https://www.ebi.ac.uk/europepmc/webservices/rest/search",
		Params: map[string]string{
			"query":  query,
			"format": "json",
			"pageSize": "20",
		},
	}, nil
}

type europePMCResponse struct {
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	Title        string `json:"title"`
	AbstractText string `json:"abstractText"`
	AuthorString string `json:"authorString"`
	PubType      string `json:"pubType"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	DOI          string `json:"doi"`
	Source       string `json:"source"`
	ID           string `json:"id"`
}

func (a *europePMCAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp europePMCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("europepmc: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.ResultList.Result))
	for _, r := range resp.ResultList.Result {
		var authors []string
		if r.AuthorString != "" {
			for _, name := range strings.Split(r.AuthorString, ", ") {
				authors = append(authors, strings.TrimSpace(name))
			}
		}
		out = append(out, model.Paper{
			Title:           r.Title,
			Abstract:        r.AbstractText,
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    r.PubType,
			PublicationDate: r.FirstPublicationDate,
			DOI:             r.DOI,
			URL:             "https://europepmc.org/article/" + r.Source + "/" + r.ID,
		})
	}
	return out, nil
}
