package resultcache

import (
	"testing"
	"time"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

type fakeRecorder struct {
	hits, misses int
}

func (f *fakeRecorder) ObserveCacheHit()  { f.hits++ }
func (f *fakeRecorder) ObserveCacheMiss() { f.misses++ }

func TestInstrument_RecordsHitsAndMisses(t *testing.T) {
	rec := &fakeRecorder{}
	backend := Instrument(New(time.Hour), rec)

	fp := model.Fingerprint{1}
	if _, ok := backend.Lookup(fp); ok {
		t.Fatal("Lookup() = hit on empty cache, want miss")
	}

	backend.Store(fp, []model.Match{{}}, time.Hour)
	if _, ok := backend.Lookup(fp); !ok {
		t.Fatal("Lookup() = miss after Store, want hit")
	}

	if rec.misses != 1 {
		t.Errorf("misses = %d, want 1", rec.misses)
	}
	if rec.hits != 1 {
		t.Errorf("hits = %d, want 1", rec.hits)
	}
}

func TestInstrument_NilRecorderIsPassthrough(t *testing.T) {
	backend := Instrument(New(time.Hour), nil)
	if _, ok := backend.(*instrumented); ok {
		t.Error("Instrument(nil) should return the backend unwrapped")
	}
}
