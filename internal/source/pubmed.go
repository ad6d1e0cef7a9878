package source

import (
	"encoding/xml"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

var _ adapter = (*pubmedAdapter)(nil)

// pubmedAdapter queries NCBI E-utilities efetch for PubMed. An API key
// raises NCBI's rate limit but is not required to make calls.
type pubmedAdapter struct {
	apiKey string
	email  string
}

func newPubmedAdapter(apiKey, email string) *pubmedAdapter {
	return &pubmedAdapter{apiKey: apiKey, email: email}
}

func (a *pubmedAdapter) sourceName() string { return "pubmed" }
func (a *pubmedAdapter) configured() bool   { return true }

func (a *pubmedAdapter) buildRequest(query, theme, language string) (Request, error) {
	params := map[string]string{
		"db":      "pubmed",
		"term":    query,
		"retmode": "xml",
		"retmax":  "20",
	}
	if a.apiKey != "" {
		params["api_key"] = a.apiKey
	}
	if a.email != "" {
		params["email"] = a.email
	}
	return Request{URL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi", Params: params}, nil
}

type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle string `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractText []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName string `xml:"LastName"`
					ForeName string `xml:"ForeName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			Journal struct {
				JournalIssue struct {
					PubDate struct {
						Year  string `xml:"Year"`
						Month string `xml:"Month"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

func (a *pubmedAdapter) parseResponse(body []byte, contentType string) ([]model.Paper, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("pubmed: decode: %w", err)
	}

	out := make([]model.Paper, 0, len(set.Articles))
	for _, art := range set.Articles {
		var abstract string
		for _, p := range art.MedlineCitation.Article.Abstract.AbstractText {
			abstract += p + " "
		}
		var authors []string
		for _, au := range art.MedlineCitation.Article.AuthorList.Authors {
			if name := joinAuthorName(au.ForeName, au.LastName); name != "" {
				authors = append(authors, name)
			}
		}
		pmid := art.MedlineCitation.PMID
		out = append(out, model.Paper{
			Title:           art.MedlineCitation.Article.ArticleTitle,
			Abstract:        abstract,
			Authors:         authors,
			Source:          a.sourceName(),
			DocumentType:    "journal-article",
			PublicationDate: firstNonEmpty(art.MedlineCitation.Article.Journal.JournalIssue.PubDate.Year),
			URL:             "https://pubmed.ncbi.nlm.nih.gov/" + pmid,
		})
	}
	return out, nil
}
