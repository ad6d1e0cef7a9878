package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// stripHTML discards element markup and decodes entities, returning the
// concatenated text content in document order. A non-HTML input (no tags)
// round-trips through the tokenizer unchanged aside from entity decoding,
// which is a no-op for plain text.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
