package breaker

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAllow_ClosedAlwaysAllows(t *testing.T) {
	b := New(5, 30*time.Second)
	for i := 0; i < 10; i++ {
		if ok, _ := b.Allow("crossref"); !ok {
			t.Fatalf("Allow() = false on call %d, want true while closed", i)
		}
	}
}

func TestRecordFailure_TripsOpenAtThreshold(t *testing.T) {
	b := New(5, 30*time.Second)
	for i := 0; i < 5; i++ {
		b.RecordFailure("pubmed")
	}
	if ok, _ := b.Allow("pubmed"); ok {
		t.Error("Allow() = true, want false after 5 consecutive failures")
	}
	if got := b.State("pubmed"); got != Open {
		t.Errorf("State() = %v, want Open", got)
	}
}

func TestOpen_TransitionsToHalfOpenAfterCooldown(t *testing.T) {
	now := time.Now()
	b := New(1, 10*time.Second)
	b.nowFunc = func() time.Time { return now }

	b.RecordFailure("arxiv")
	if ok, _ := b.Allow("arxiv"); ok {
		t.Fatal("Allow() = true, want false immediately after opening")
	}

	now = now.Add(11 * time.Second)
	ok, token := b.Allow("arxiv")
	if !ok {
		t.Fatal("Allow() = false, want true after cooldown elapses")
	}
	if token == uuid.Nil {
		t.Error("probe token = nil, want a non-nil half-open probe token")
	}
}

func TestHalfOpen_RejectsSecondConcurrentProbe(t *testing.T) {
	now := time.Now()
	b := New(1, 10*time.Second)
	b.nowFunc = func() time.Time { return now }

	b.RecordFailure("doaj")
	now = now.Add(11 * time.Second)
	ok1, _ := b.Allow("doaj")
	ok2, _ := b.Allow("doaj")
	if !ok1 {
		t.Fatal("first half-open probe should be allowed")
	}
	if ok2 {
		t.Error("second concurrent half-open probe should be rejected")
	}
}

func TestHalfOpen_SuccessCloses(t *testing.T) {
	now := time.Now()
	b := New(1, 10*time.Second)
	b.nowFunc = func() time.Time { return now }

	b.RecordFailure("zenodo")
	now = now.Add(11 * time.Second)
	b.Allow("zenodo")
	b.RecordSuccess("zenodo")

	if got := b.State("zenodo"); got != Closed {
		t.Errorf("State() = %v, want Closed after half-open success", got)
	}
	if ok, _ := b.Allow("zenodo"); !ok {
		t.Error("Allow() = false, want true after closing")
	}
}

func TestHalfOpen_FailureReopens(t *testing.T) {
	now := time.Now()
	b := New(1, 10*time.Second)
	b.nowFunc = func() time.Time { return now }

	b.RecordFailure("core")
	now = now.Add(11 * time.Second)
	b.Allow("core")
	b.RecordFailure("core")

	if got := b.State("core"); got != Open {
		t.Errorf("State() = %v, want Open after half-open failure", got)
	}
}

func TestRecordSuccess_ResetsFailureCountWhileClosed(t *testing.T) {
	b := New(5, 30*time.Second)
	b.RecordFailure("unpaywall")
	b.RecordFailure("unpaywall")
	b.RecordSuccess("unpaywall")
	b.RecordFailure("unpaywall")
	b.RecordFailure("unpaywall")
	b.RecordFailure("unpaywall")
	b.RecordFailure("unpaywall")
	// 4 consecutive since the reset, one below the threshold of 5.
	if got := b.State("unpaywall"); got != Closed {
		t.Errorf("State() = %v, want Closed (failure count should have reset)", got)
	}
}

func TestReset_RestoresAllSourcesToClosed(t *testing.T) {
	b := New(1, 30*time.Second)
	b.RecordFailure("hal")
	if got := b.State("hal"); got != Open {
		t.Fatalf("State() = %v, want Open before Reset", got)
	}
	b.Reset()
	if got := b.State("hal"); got != Closed {
		t.Errorf("State() = %v, want Closed after Reset", got)
	}
}

type recordedTransition struct {
	source, state string
}

type fakeRecorder struct {
	transitions []recordedTransition
}

func (f *fakeRecorder) ObserveCircuitState(source, state string) {
	f.transitions = append(f.transitions, recordedTransition{source, state})
}

func TestRecorder_NotifiedOnStateTransitions(t *testing.T) {
	rec := &fakeRecorder{}
	now := time.Now()
	b := New(1, 10*time.Second)
	b.nowFunc = func() time.Time { return now }
	b.SetRecorder(rec)

	b.RecordFailure("doaj") // closed -> open
	now = now.Add(11 * time.Second)
	b.Allow("doaj") // open -> half_open
	b.RecordSuccess("doaj") // half_open -> closed

	want := []recordedTransition{
		{"doaj", "open"},
		{"doaj", "half_open"},
		{"doaj", "closed"},
	}
	if len(rec.transitions) != len(want) {
		t.Fatalf("transitions = %+v, want %+v", rec.transitions, want)
	}
	for i, w := range want {
		if rec.transitions[i] != w {
			t.Errorf("transition %d = %+v, want %+v", i, rec.transitions[i], w)
		}
	}
}

func TestRecordSuccess_NoTransitionNotificationWhenAlreadyClosed(t *testing.T) {
	rec := &fakeRecorder{}
	b := New(5, 30*time.Second)
	b.SetRecorder(rec)

	b.RecordSuccess("zenodo")

	if len(rec.transitions) != 0 {
		t.Errorf("transitions = %+v, want none for a no-op success while already closed", rec.transitions)
	}
}
