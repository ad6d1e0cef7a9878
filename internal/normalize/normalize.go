// Package normalize implements the text normalizer (C1): a deterministic,
// stateless pipeline from raw fragment text to the canonical form used for
// both embedding and content hashing.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text normalizes raw text for a given language code, in the order fixed
// by §4.1: HTML strip, NFKC, case-fold, non-letter/digit folding, trim,
// stopword removal. The result is deterministic: identical inputs yield
// byte-identical outputs across processes.
func Text(raw string, language string) string {
	stripped := stripHTML(raw)
	folded := norm.NFKC.String(stripped)
	lowered := strings.ToLower(folded)
	collapsed := collapseNonWordRuns(lowered)
	trimmed := strings.TrimSpace(collapsed)
	return removeStopwords(trimmed, language)
}

// collapseNonWordRuns replaces every run of characters that is neither a
// letter nor a digit with a single space.
func collapseNonWordRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteRune(' ')
			inRun = true
		}
	}
	return b.String()
}

// removeStopwords drops whitespace-delimited tokens found in the
// language's stopword set. Languages without a known set are returned
// unchanged (skip, don't fail) per §4.1.
func removeStopwords(s string, language string) string {
	set, ok := stopwordSets[normalizeLangCode(language)]
	if !ok || len(set) == 0 {
		return s
	}
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := set[f]; !drop {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// normalizeLangCode accepts both "en" and "en-US"-style tags and maps to
// the bare two-letter code used as the stopword-set key.
func normalizeLangCode(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(l, "-_"); i >= 0 {
		l = l[:i]
	}
	return l
}

// ContentHashInput joins two already-normalized fields with the fixed
// separator used for dedup content hashing (§9 Open Question #1): the
// caller must normalize title and abstract independently before calling
// this, never the other way around.
func ContentHashInput(normalizedTitle, normalizedAbstract string) string {
	return normalizedTitle + "\n" + normalizedAbstract
}
