package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// fingerprintHash deterministically hashes the cache key components,
// grounded on the teacher's cacheKey (sha256 over the discriminating
// fields, joined with a fixed separator so no field can collide across
// the boundary).
func fingerprintHash(theme, language, normalizedQuery string, threshold float64) model.Fingerprint {
	input := fmt.Sprintf("%s\x00%s\x00%s\x00%.6f", theme, language, normalizedQuery, threshold)
	return sha256.Sum256([]byte(input))
}

func hexPrefix(b []byte, n int) string {
	if n > len(b) {
		n = len(b)
	}
	return hex.EncodeToString(b[:n])
}
