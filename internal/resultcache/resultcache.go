// Package resultcache implements the result cache (C9): fingerprint to
// result-set with TTL, grounded on the teacher's internal/cache/query.go
// shape (cacheEntry{result, createdAt, expiresAt}, ticker-driven cleanup).
// A backend miss is always advisory — it falls through to live computation,
// never fails the caller (§4.9).
package resultcache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Backend is the pluggable result-cache store: the in-process Cache
// (default) or RedisCache for cross-worker sharing when a cache backend
// URL is configured (§4.9, §9).
type Backend interface {
	Lookup(fp model.Fingerprint) ([]model.Match, bool)
	Store(fp model.Fingerprint, matches []model.Match, ttl time.Duration)
	Clear()
}

var (
	_ Backend = (*Cache)(nil)
	_ Backend = (*RedisCache)(nil)
)

// entry is one cached result set, grounded verbatim on the teacher's
// cacheEntry struct.
type entry struct {
	matches   []model.Match
	createdAt time.Time
	expiresAt time.Time
}

// Cache is the in-process result cache, keyed by §3/§4.9's fingerprint:
// hash(theme, language, normalized_query, threshold). Thread-safe via
// sync.RWMutex with a background TTL sweep, exactly the teacher's
// QueryCache shape.
type Cache struct {
	mu      sync.RWMutex
	entries map[model.Fingerprint]*entry
	ttl     time.Duration
	nowFunc func() time.Time
	stopCh  chan struct{}
}

// New creates a Cache with the given default TTL and starts background
// cleanup. Defaulting per call is handled in Store, matching §4.9's
// "TTL default 24h".
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := &Cache{
		entries: make(map[model.Fingerprint]*entry),
		ttl:     ttl,
		nowFunc: time.Now,
		stopCh:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Lookup returns the cached matches for fingerprint if present and not
// expired (§4.9 "lookup(fingerprint) -> (matches | miss)").
func (c *Cache) Lookup(fp model.Fingerprint) ([]model.Match, bool) {
	c.mu.RLock()
	e, ok := c.entries[fp]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.nowFunc().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, fp)
		c.mu.Unlock()
		return nil, false
	}
	slog.Debug("[CACHE] hit", "fingerprint", shortFP(fp), "age_ms", c.nowFunc().Sub(e.createdAt).Milliseconds())
	return e.matches, true
}

// Store writes matches under fingerprint with the given ttl (0 uses the
// Cache's default).
func (c *Cache) Store(fp model.Fingerprint, matches []model.Match, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.nowFunc()
	c.mu.Lock()
	c.entries[fp] = &entry{matches: matches, createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
	slog.Debug("[CACHE] set", "fingerprint", shortFP(fp), "ttl_s", int(ttl.Seconds()), "total_entries", c.Len())
}

// Clear empties the cache, per the admin clear_result_cache operation (§6).
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[model.Fingerprint]*entry)
	c.mu.Unlock()
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop halts the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.stopCh)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := c.nowFunc()
			c.mu.Lock()
			before := len(c.entries)
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
				}
			}
			after := len(c.entries)
			c.mu.Unlock()
			if before != after {
				slog.Info("[CACHE] cleanup", "removed", before-after, "remaining", after)
			}
		case <-c.stopCh:
			return
		}
	}
}

// Fingerprint computes the §3/§4.9 fingerprint: hash(theme, language,
// normalized_query, threshold). use_faiss is deliberately excluded so the
// cache is agnostic to execution path.
func Fingerprint(theme, language, normalizedQuery string, threshold float64) model.Fingerprint {
	return fingerprintHash(theme, language, normalizedQuery, threshold)
}

func shortFP(fp model.Fingerprint) string {
	return hexPrefix(fp[:], 8)
}
