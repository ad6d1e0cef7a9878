package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*crossrefAdapter)(nil)

// crossrefAdapter queries the Crossref works API. No API key required;
// a contact email, if configured, is sent via the "mailto" param for the
// polite pool.
type crossrefAdapter struct {
	email string
}

func newCrossrefAdapter(email string) *crossrefAdapter {
	return &crossrefAdapter{email: email}
}

func (a *crossrefAdapter) sourceName() string { return "crossref" }
func (a *crossrefAdapter) configured() bool   { return true }

func (a *crossrefAdapter) buildRequest(query, theme, language string) (Request, error) {
	params := map[string]string{
		"query": query,
		"rows":  "20",
	}
	if a.email != "" {
		params["mailto"] = a.email
	}
	return Request{
		URL:    "https://api.crossref.org/works",
		Params: params,
	}, nil
}

type crossrefResponse struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI     string     `json:"DOI"`
	Title   []string   `json:"title"`
	Abstract string    `json:"abstract"`
	URL     string     `json:"URL"`
	Type    string     `json:"type"`
	Authors []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"author"`
	Published struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
}

func (a *crossrefAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp crossrefResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("crossref: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		var authors []string
		for _, au := range item.Authors {
			if name := joinAuthorName(au.Given, au.Family); name != "" {
				authors = append(authors, name)
			}
		}
		out = append(out, model.Paper{
			Title:           firstNonEmpty(item.Title...),
			Abstract:        stripJATS(item.Abstract),
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    item.Type,
			PublicationDate: datePartsToString(item.Published.DateParts),
			DOI:             item.DOI,
			URL:             firstNonEmpty(item.URL, "https://doi.org/"+item.DOI),
		})
	}
	return out, nil
}

// stripJATS removes the light JATS markup Crossref sometimes wraps
// abstracts in (<jats:p>...</jats:p>).
func stripJATS(s string) string {
	s = strings.ReplaceAll(s, "<jats:p>", "")
	s = strings.ReplaceAll(s, "</jats:p>", " ")
	return strings.TrimSpace(s)
}

func datePartsToString(parts [][]int) string {
	if len(parts) == 0 || len(parts[0]) == 0 {
		return ""
	}
	p := parts[0]
	switch len(p) {
	case 1:
		return strconv.Itoa(p[0])
	case 2:
		return fmt.Sprintf("%04d-%02d", p[0], p[1])
	default:
		return fmt.Sprintf("%04d-%02d-%02d", p[0], p[1], p[2])
	}
}
