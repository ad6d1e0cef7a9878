// Package ratelimit implements the per-source token bucket (C5, §4.5).
package ratelimit

import (
	"sync"
	"time"
)

// Backend stores and refills per-source token buckets. The in-process
// implementation is the default; a shared backend lets multiple worker
// processes draw from the same bucket (§4.5, §9).
type Backend interface {
	// TryAcquire consumes one token for source if available, refilling
	// first based on elapsed time since the last refill.
	TryAcquire(source string, capacity float64, refillPerSecond float64) bool
	Reset(source string)
	ResetAll()
}

// Limiter is the per-source token bucket facade used by the source driver.
type Limiter struct {
	backend Backend
	mu      sync.RWMutex
	config  map[string]sourceConfig
}

type sourceConfig struct {
	capacity float64
	refill   float64
}

// New constructs a Limiter backed by an in-process bucket table unless a
// different Backend is supplied.
func New(backend Backend) *Limiter {
	if backend == nil {
		backend = newInProcessBackend(time.Now)
	}
	return &Limiter{backend: backend, config: make(map[string]sourceConfig)}
}

// Configure sets the bucket capacity and refill rate for a source. Must be
// called before the source's first TryAcquire.
func (l *Limiter) Configure(source string, capacity, refillPerSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config[source] = sourceConfig{capacity: capacity, refill: refillPerSecond}
}

// TryAcquire consumes one token for source, returning false if the bucket
// is empty. Unconfigured sources always allow (treated as unlimited).
func (l *Limiter) TryAcquire(source string) bool {
	l.mu.RLock()
	cfg, ok := l.config[source]
	l.mu.RUnlock()
	if !ok {
		return true
	}
	return l.backend.TryAcquire(source, cfg.capacity, cfg.refill)
}

// Reset restores a single source's bucket to full capacity.
func (l *Limiter) Reset(source string) {
	l.backend.Reset(source)
}

// ResetAll restores every bucket to full capacity.
func (l *Limiter) ResetAll() {
	l.backend.ResetAll()
}
