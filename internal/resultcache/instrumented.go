package resultcache

import (
	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// Recorder observes cache hit/miss outcomes for the cache hit/miss
// counters SPEC_FULL's DOMAIN STACK promises. Satisfied structurally by
// *middleware.Metrics; resultcache stays ignorant of the middleware
// package.
type Recorder interface {
	ObserveCacheHit()
	ObserveCacheMiss()
}

// instrumented wraps a Backend to report every Lookup's outcome to a
// Recorder, regardless of which concrete backend (in-process or Redis) is
// active.
type instrumented struct {
	Backend
	recorder Recorder
}

// Instrument wraps backend so every Lookup call reports a hit or miss to
// recorder. A nil recorder makes this a no-op passthrough.
func Instrument(backend Backend, recorder Recorder) Backend {
	if recorder == nil {
		return backend
	}
	return &instrumented{Backend: backend, recorder: recorder}
}

func (i *instrumented) Lookup(fp model.Fingerprint) ([]model.Match, bool) {
	matches, ok := i.Backend.Lookup(fp)
	if ok {
		i.recorder.ObserveCacheHit()
	} else {
		i.recorder.ObserveCacheMiss()
	}
	return matches, ok
}

var _ Backend = (*instrumented)(nil)
