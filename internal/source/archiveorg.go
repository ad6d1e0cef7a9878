package source

import (
	"encoding/json"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*archiveOrgAdapter)(nil)

// archiveOrgAdapter queries the Internet Archive's advancedsearch API for
// texts. No key required.
type archiveOrgAdapter struct{}

func newArchiveOrgAdapter() *archiveOrgAdapter { return &archiveOrgAdapter{} }

func (a *archiveOrgAdapter) sourceName() string { return "archiveorg" }
func (a *archiveOrgAdapter) configured() bool   { return true }

func (a *archiveOrgAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "https://archive.org/advancedsearch.php",
		Params: map[string]string{
			"q":        "mediatype:texts AND " + query,
			"fl[]":     "identifier,title,description,creator,date",
			"rows":     "20",
			"output":   "json",
		},
	}, nil
}

type archiveOrgResponse struct {
	Response struct {
		Docs []archiveOrgDoc `json:"docs"`
	} `json:"response"`
}

type archiveOrgDoc struct {
	Identifier  string      `json:"identifier"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Creator     interface{} `json:"creator"`
	Date        string      `json:"date"`
}

func (a *archiveOrgAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp archiveOrgResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("archiveorg: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Response.Docs))
	for _, d := range resp.Response.Docs {
		out = append(out, model.Paper{
			Title:           d.Title,
			Abstract:        d.Description,
			Authors:         creatorToAuthors(d.Creator),
			Source:          a.sourceName(),
			DocumentType:    "text",
			PublicationDate: d.Date,
			URL:             "https://archive.org/details/" + d.Identifier,
		})
	}
	return out, nil
}

// creatorToAuthors normalizes archive.org's "creator" field, which the API
// returns as either a single string or an array of strings.
func creatorToAuthors(creator interface{}) []string {
	switch v := creator.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, c := range v {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
