package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// Stub is a deterministic, offline Embedder: each text hashes to a
// reproducible pseudo-random unit vector. It never calls out to a model
// and never errors, which is what makes S1/S5's fixed-score end-to-end
// scenarios reproducible in tests without a real embedding backend.
type Stub struct {
	dim int
}

// NewStub creates a Stub producing vectors of the given dimension.
func NewStub(dim int) *Stub {
	if dim <= 0 {
		dim = 384
	}
	return &Stub{dim: dim}
}

func (s *Stub) Dimension() int { return s.dim }

func (s *Stub) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vectorFor(t)
	}
	return out, nil
}

// vectorFor expands a SHA-256 digest of text into a stream of pseudo-random
// floats via a counter-mode stretch, so the vector dimension isn't bounded
// by the 32-byte digest size.
func (s *Stub) vectorFor(text string) []float32 {
	v := make([]float32, s.dim)
	block := 0
	seed := sha256.Sum256([]byte(text))
	var buf [40]byte
	copy(buf[:32], seed[:])
	for i := 0; i < s.dim; i++ {
		if i%8 == 0 {
			binary.BigEndian.PutUint64(buf[32:], uint64(block))
			seed = sha256.Sum256(buf[:])
			copy(buf[:32], seed[:])
			block++
		}
		word := binary.BigEndian.Uint32(seed[(i%8)*4 : (i%8)*4+4])
		v[i] = float32(word)/float32(1<<32) - 0.5
	}
	return l2Normalize(v)
}
