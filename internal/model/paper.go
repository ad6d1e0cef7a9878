// Package model holds the shared data types of the similarity pipeline.
package model

import (
	"crypto/sha256"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/normalize"
)

// Paper is a matched or indexed academic document (§3).
type Paper struct {
	PaperID         uint64    `json:"paperId"`
	ContentHash     [32]byte  `json:"-"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	Source          string    `json:"source"`
	DocumentType    string    `json:"documentType"`
	PublicationDate string    `json:"publicationDate"`
	DOI             string    `json:"doi,omitempty"`
	URL             string    `json:"url,omitempty"`
	Embedding       []float32 `json:"-"`
}

// Query is a normalized fragment with its origin.
type Query struct {
	Page          string
	Paragraph     string
	RawText       string
	NormalizedText string
	Embedding     []float32
}

// Band is a plagiarism severity classification (§3).
type Band string

const (
	BandVeryHigh Band = "very_high"
	BandHigh     Band = "high"
	BandModerate Band = "moderate"
	BandLow      Band = "low"
	BandMinimal  Band = "minimal"
)

// Band thresholds, closed intervals, highest first.
var bandThresholds = []struct {
	band Band
	min  float32
}{
	{BandVeryHigh, 0.90},
	{BandHigh, 0.80},
	{BandModerate, 0.70},
	{BandLow, 0.60},
	{BandMinimal, 0.50},
}

// ClassifyBand returns the band for a cosine score, and false if the score
// is below the minimal band floor (0.50) and should not be returned.
func ClassifyBand(score float32) (Band, bool) {
	for _, t := range bandThresholds {
		if score >= t.min {
			return t.band, true
		}
	}
	return "", false
}

// Match is a ranked result: a paper matched against an originating query (§3).
type Match struct {
	SourcePaper     Paper   `json:"sourcePaper"`
	OriginatingPage string  `json:"originatingPage"`
	OriginatingPara string  `json:"originatingParagraph"`
	CosineScore     float32 `json:"cosineScore"`
	PlagiarismBand  Band    `json:"plagiarismBand"`
}

// SourceEnvelope is the return shape of a single adapter call (§4.7).
type SourceEnvelope struct {
	Papers    []Paper
	Source    string
	OK        bool
	LatencyMS int64
	Error     string
}

// Fingerprint identifies a cached similarity result set (§3, §4.9).
type Fingerprint [32]byte

// UTCTimestamp formats a backup directory suffix deterministically.
func UTCTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// ContentHashOf computes the dedup content hash fixed by §9's resolved
// Open Question: hash(normalize(title) + "\n" + normalize(abstract)),
// each field normalized independently before the separator is added.
func ContentHashOf(title, abstract, language string) [32]byte {
	input := normalize.ContentHashInput(normalize.Text(title, language), normalize.Text(abstract, language))
	return sha256.Sum256([]byte(input))
}
