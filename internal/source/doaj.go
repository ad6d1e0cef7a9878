package source

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*doajAdapter)(nil)

// doajAdapter queries the Directory of Open Access Journals search API.
// No key required.
type doajAdapter struct{}

func newDOAJAdapter() *doajAdapter { return &doajAdapter{} }

func (a *doajAdapter) sourceName() string { return "doaj" }
func (a *doajAdapter) configured() bool   { return true }

func (a *doajAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "https://doaj.org/api/search/articles/" + url.PathEscape(query),
		Params: map[string]string{
			"pageSize": "20",
		},
	}, nil
}

type doajResponse struct {
	Results []doajResult `json:"results"`
}

type doajResult struct {
	Bibjson struct {
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Author   []struct {
			Name string `json:"name"`
		} `json:"author"`
		Year       string `json:"year"`
		Identifier []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"identifier"`
		Link []struct {
			URL  string `json:"url"`
			Type string `json:"type"`
		} `json:"link"`
	} `json:"bibjson"`
}

func (a *doajAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp doajResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("doaj: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Results))
	for _, r := range resp.Results {
		var authors []string
		for _, au := range r.Bibjson.Author {
			authors = append(authors, au.Name)
		}
		var doi, link string
		for _, id := range r.Bibjson.Identifier {
			if id.Type == "doi" {
				doi = id.ID
			}
		}
		for _, l := range r.Bibjson.Link {
			if l.Type == "fulltext" {
				link = l.URL
			}
		}
		out = append(out, model.Paper{
			Title:           r.Bibjson.Title,
			Abstract:        r.Bibjson.Abstract,
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    "journal-article",
			PublicationDate: r.Bibjson.Year,
			DOI:             doi,
			URL:             link,
		})
	}
	return out, nil
}
