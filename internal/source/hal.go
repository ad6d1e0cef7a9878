package source

import (
	"encoding/json"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*halAdapter)(nil)

// halAdapter queries the HAL open archive's Solr-backed search API. No key
// required.
type halAdapter struct{}

func newHALAdapter() *halAdapter { return &halAdapter{} }

func (a *halAdapter) sourceName() string { return "hal" }
func (a *halAdapter) configured() bool   { return true }

func (a *halAdapter) buildRequest(query, theme, language string) (Request, error) {
	return Request{
		URL: "https://api.archives-ouvertes.fr/search/",
		Params: map[string]string{
			"q":      query,
			"rows":   "20",
			"wt":     "json",
			"fl":     "title_s,abstract_s,authFullName_s,docType_s,producedDate_s,doiId_s,uri_s",
		},
	}, nil
}

type halResponse struct {
	Response struct {
		Docs []halDoc `json:"docs"`
	} `json:"response"`
}

type halDoc struct {
	TitleS          []string `json:"title_s"`
	AbstractS       []string `json:"abstract_s"`
	AuthFullNameS   []string `json:"authFullName_s"`
	DocTypeS        string   `json:"docType_s"`
	ProducedDateS   string   `json:"producedDate_s"`
	DOIIDS          string   `json:"doiId_s"`
	URIS            string   `json:"uri_s"`
}

func (a *halAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var resp halResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("hal: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(resp.Response.Docs))
	for _, d := range resp.Response.Docs {
		out = append(out, model.Paper{
			Title:           firstNonEmpty(d.TitleS...),
			Abstract:        firstNonEmpty(d.AbstractS...),
			Authors:         d.AuthFullNameS,
			Source:          a.sourceName(),
			DocumentType:    d.DocTypeS,
			PublicationDate: d.ProducedDateS,
			DOI:             d.DOIIDS,
			URL:             d.URIS,
		})
	}
	return out, nil
}
