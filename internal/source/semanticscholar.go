package source

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*semanticScholarAdapter)(nil)

// semanticScholarAdapter queries the Semantic Scholar Graph API. An API
// key raises the shared rate limit but is optional.
type semanticScholarAdapter struct {
	apiKey string
}

func newSemanticScholarAdapter(apiKey string) *semanticScholarAdapter {
	return &semanticScholarAdapter{apiKey: apiKey}
}

func (a *semanticScholarAdapter) sourceName() string { return "semanticscholar" }
func (a *semanticScholarAdapter) configured() bool   { return true }

func (a *semanticScholarAdapter) buildRequest(query, theme, language string) (Request, error) {
	headers := map[string]string{}
	if a.apiKey != "" {
		headers["x-api-key"] = a.apiKey
	}
	return Request{
		URL: "https://api.semanticscholar.org/graph/v1/paper/search",
		Params: map[string]string{
			"query":  query,
			"limit":  "20",
			"fields": "title,abstract,authors,year,externalIds,url,publicationTypes",
		},
		Headers: headers,
	}, nil
}

type semanticScholarResponse struct {
	Data []semanticScholarPaper `json:"data"`
}

type semanticScholarPaper struct {
	Title   string `json:"title"`
	Abstract string `json:"abstract"`
	URL     string `json:"url"`
	Year    int    `json:"year"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
	PublicationTypes []string `json:"publicationTypes"`
}

func (a *semanticScholarAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp semanticScholarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("semanticscholar: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Data))
	for _, p := range resp.Data {
		var authors []string
		for _, au := range p.Authors {
			authors = append(authors, au.Name)
		}
		docType := ""
		if len(p.PublicationTypes) > 0 {
			docType = p.PublicationTypes[0]
		}
		date := ""
		if p.Year > 0 {
			date = strconv.Itoa(p.Year)
		}
		out = append(out, model.Paper{
			Title:           p.Title,
			Abstract:        p.Abstract,
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    docType,
			PublicationDate: date,
			DOI:             p.ExternalIDs.DOI,
			URL:             p.URL,
		})
	}
	return out, nil
}
