package ratelimit

import (
	"sync"
	"time"
)

// bucket is a single source's token bucket state, grounded on the
// teacher's userWindow shape (middleware/ratelimit.go): a small
// mutex-guarded struct keyed by source in a sync.Map.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// inProcessBackend is the default Backend: per-process bucket table with no
// cross-worker sharing (documented caveat per §4.5).
type inProcessBackend struct {
	buckets sync.Map // map[string]*bucket
	nowFunc func() time.Time
}

func newInProcessBackend(nowFunc func() time.Time) *inProcessBackend {
	return &inProcessBackend{nowFunc: nowFunc}
}

func (b *inProcessBackend) bucketFor(source string, capacity float64) *bucket {
	val, _ := b.buckets.LoadOrStore(source, &bucket{tokens: capacity, lastRefill: b.nowFunc()})
	return val.(*bucket)
}

func (b *inProcessBackend) TryAcquire(source string, capacity, refillPerSecond float64) bool {
	bk := b.bucketFor(source, capacity)
	bk.mu.Lock()
	defer bk.mu.Unlock()

	now := b.nowFunc()
	elapsed := now.Sub(bk.lastRefill).Seconds()
	if elapsed > 0 {
		bk.tokens += elapsed * refillPerSecond
		if bk.tokens > capacity {
			bk.tokens = capacity
		}
		bk.lastRefill = now
	}

	if bk.tokens < 1 {
		return false
	}
	bk.tokens--
	return true
}

func (b *inProcessBackend) Reset(source string) {
	b.buckets.Delete(source)
}

func (b *inProcessBackend) ResetAll() {
	b.buckets.Range(func(key, _ any) bool {
		b.buckets.Delete(key)
		return true
	})
}
