package source

import "strings"

// firstNonEmpty returns the first non-empty string argument.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// joinAuthorName joins a given/family name pair the way most bibliographic
// JSON APIs represent authors, returning "" when both parts are empty.
func joinAuthorName(given, family string) string {
	name := strings.TrimSpace(given + " " + family)
	if name == "" {
		return ""
	}
	return name
}
