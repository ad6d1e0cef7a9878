package source

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*arxivAdapter)(nil)

// arxivAdapter queries the arXiv Atom export API. No key required.
type arxivAdapter struct{}

func newArxivAdapter() *arxivAdapter { return &arxivAdapter{} }

func (a *arxivAdapter) sourceName() string { return "arxiv" }
func (a *arxivAdapter) configured() bool   { return true }

func (a *arxivAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "http://export.arxiv.org/api/query",
		Params: map[string]string{
			"search_query": "all:" + query,
			"max_results":  "20",
		},
	}, nil
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func (a *arxivAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		var authors []string
		for _, au := range e.Authors {
			authors = append(authors, au.Name)
		}
		date := e.Published
		if idx := strings.IndexByte(date, 'T'); idx >= 0 {
			date = date[:idx]
		}
		out = append(out, model.Paper{
			Title:           strings.TrimSpace(e.Title),
			Abstract:        strings.TrimSpace(e.Summary),
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    "preprint",
			PublicationDate: date,
			URL:             e.ID,
		})
	}
	return out, nil
}
