// Package fragment implements the request-shaped fragmenter (C11) used by
// plagiarism-check: sentence-boundary chunking and sliding-window chunking
// over word-delimited text (§4.11).
package fragment

import (
	"fmt"
	"strings"
	"unicode"
)

// Chunk pairs a zero-based index with its text, the (index, text) shape
// §4.11 specifies for both chunking modes.
type Chunk struct {
	Index int
	Text  string
}

// sentenceTerminators is the boundary class fixed by §4.11: ". ! ? 。 ！ ？"
// followed by whitespace or end of string.
var sentenceTerminators = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, '。': {}, '！': {}, '？': {},
}

// Sentences splits text on sentence boundaries, then emits fragments with
// at least minWords words, concatenating consecutive too-short sentences
// until the minimum is reached (§4.11). A trailing remainder that never
// reaches minWords is still emitted as the final fragment.
func Sentences(text string, minWords int) []Chunk {
	raw := splitSentences(text)

	var out []Chunk
	var buf strings.Builder
	bufWords := 0
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
		bufWords += wordCount(s)

		if bufWords >= minWords {
			out = append(out, Chunk{Index: len(out), Text: buf.String()})
			buf.Reset()
			bufWords = 0
		}
	}
	if buf.Len() > 0 {
		out = append(out, Chunk{Index: len(out), Text: buf.String()})
	}
	return out
}

// splitSentences breaks text at a terminator run followed by whitespace or
// end of string, keeping the terminator with the preceding sentence.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	i := 0
	for i < len(runes) {
		if _, isTerm := sentenceTerminators[runes[i]]; isTerm {
			j := i + 1
			for j < len(runes) {
				if _, stillTerm := sentenceTerminators[runes[j]]; !stillTerm {
					break
				}
				j++
			}
			if j == len(runes) || unicode.IsSpace(runes[j]) {
				out = append(out, string(runes[start:j]))
				start = j
				i = j
				continue
			}
			i = j
			continue
		}
		i++
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// Sliding produces overlapping windows of windowWords words, advancing by
// windowWords-overlapWords each step (§4.11). Preconditions:
// 0 < overlapWords < windowWords.
func Sliding(text string, windowWords, overlapWords int) ([]Chunk, error) {
	if windowWords <= 0 {
		return nil, fmt.Errorf("fragment.Sliding: windowWords must be positive, got %d", windowWords)
	}
	if overlapWords <= 0 || overlapWords >= windowWords {
		return nil, fmt.Errorf("fragment.Sliding: overlapWords must satisfy 0 < overlap < window, got overlap=%d window=%d", overlapWords, windowWords)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	stride := windowWords - overlapWords
	var out []Chunk
	for start := 0; start < len(words); start += stride {
		end := start + windowWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, Chunk{Index: len(out), Text: strings.Join(words[start:end], " ")})
		if end == len(words) {
			break
		}
	}
	return out, nil
}
