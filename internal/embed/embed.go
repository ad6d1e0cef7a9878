// Package embed implements the embedding service (C2): batched inference
// producing fixed-dimension, L2-normalized vectors, with an in-process
// cache keyed by normalized text and serialized access to the underlying
// model (§4.2, §5).
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Embedder produces L2-normalized embedding vectors for a batch of
// already-normalized strings. Implementations must be reentrant-safe.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Service wraps an Embedder with the in-process cache and batching
// discipline required by §4.2: up to BatchMax texts per underlying call,
// a single in-flight model call at a time, cache hits short-circuited
// before ever reaching the backend.
type Service struct {
	backend  Embedder
	batchMax int

	mu       sync.Mutex // serializes access to backend, per §5
	cacheMu  sync.RWMutex
	cache    map[string][]float32
}

// NewService creates a Service wrapping backend, batching up to batchMax
// texts per underlying call (default 64 if batchMax <= 0).
func NewService(backend Embedder, batchMax int) *Service {
	if batchMax <= 0 {
		batchMax = 64
	}
	return &Service{
		backend:  backend,
		batchMax: batchMax,
		cache:    make(map[string][]float32),
	}
}

// Embed returns one L2-normalized vector per input text, reusing cached
// vectors for texts seen before and only calling the backend for the
// remainder, batched up to batchMax per call.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var miss []string
	var missIdx []int

	s.cacheMu.RLock()
	for i, t := range texts {
		if v, ok := s.cache[t]; ok {
			results[i] = v
		} else {
			miss = append(miss, t)
			missIdx = append(missIdx, i)
		}
	}
	s.cacheMu.RUnlock()

	if len(miss) == 0 {
		return results, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the model lock: a concurrent caller may have already
	// computed some of these while we waited.
	var stillMiss []string
	var stillMissIdx []int
	s.cacheMu.RLock()
	for k, t := range miss {
		if v, ok := s.cache[t]; ok {
			results[missIdx[k]] = v
		} else {
			stillMiss = append(stillMiss, t)
			stillMissIdx = append(stillMissIdx, missIdx[k])
		}
	}
	s.cacheMu.RUnlock()

	for start := 0; start < len(stillMiss); start += s.batchMax {
		end := start + s.batchMax
		if end > len(stillMiss) {
			end = len(stillMiss)
		}
		batch := stillMiss[start:end]

		vectors, err := s.backend.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed.Service.Embed: backend call failed: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed.Service.Embed: backend returned %d vectors for %d texts", len(vectors), len(batch))
		}

		s.cacheMu.Lock()
		for j, v := range vectors {
			v = l2Normalize(v)
			results[stillMissIdx[start+j]] = v
			s.cache[batch[j]] = v
		}
		s.cacheMu.Unlock()
	}

	slog.Debug("[EMBED] batch complete",
		"requested", len(texts), "cache_hits", len(texts)-len(miss), "computed", len(stillMiss))

	return results, nil
}

// Dimension delegates to the backend.
func (s *Service) Dimension() int { return s.backend.Dimension() }

// CacheLen reports the number of distinct normalized texts currently cached.
func (s *Service) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
