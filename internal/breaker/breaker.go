// Package breaker implements the per-source circuit breaker (C6, §4.6).
package breaker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a circuit breaker's lifecycle stage.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// circuit is one source's guarded state, grounded on the teacher's
// userWindow shape (middleware/ratelimit.go): a small mutex-protected
// struct keyed by source.
type circuit struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeToken          uuid.UUID // non-zero while a half-open probe is in flight
}

// Recorder observes circuit state transitions for the source-circuit-state
// gauge SPEC_FULL's DOMAIN STACK promises. Satisfied structurally by
// *middleware.Metrics; breaker stays ignorant of the middleware package.
type Recorder interface {
	ObserveCircuitState(source string, state string)
}

// Breaker tracks circuit state per external source.
type Breaker struct {
	openAt   int
	cooldown time.Duration
	nowFunc  func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
	recorder Recorder
}

// New constructs a Breaker. openAt is the consecutive-failure count that
// trips a source to open (default 5); cooldown is how long it stays open
// before allowing a half-open probe (default 30s).
func New(openAt int, cooldown time.Duration) *Breaker {
	return &Breaker{
		openAt:   openAt,
		cooldown: cooldown,
		nowFunc:  time.Now,
		circuits: make(map[string]*circuit),
	}
}

// SetRecorder installs r to observe every subsequent state transition.
func (b *Breaker) SetRecorder(r Recorder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorder = r
}

func (b *Breaker) report(source string, state State) {
	b.mu.Lock()
	r := b.recorder
	b.mu.Unlock()
	if r != nil {
		r.ObserveCircuitState(source, string(state))
	}
}

func (b *Breaker) circuitFor(source string) *circuit {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.circuits[source]
	if !ok {
		c = &circuit{state: Closed}
		b.circuits[source] = c
	}
	return c
}

// Allow reports whether a call to source may proceed, and if so, a probe
// token identifying the half-open probe (uuid.Nil when the source is not
// half-open). RecordSuccess/RecordFailure take only the source and end the
// probe. closed always allows; open never allows until cooldown elapses;
// half_open allows exactly one probe in flight at a time (§4.6).
func (b *Breaker) Allow(source string) (bool, uuid.UUID) {
	c := b.circuitFor(source)
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Closed:
		return true, uuid.Nil
	case Open:
		if b.nowFunc().Sub(c.openedAt) >= b.cooldown {
			c.state = HalfOpen
			c.probeToken = uuid.New()
			b.report(source, HalfOpen)
			return true, c.probeToken
		}
		return false, uuid.Nil
	case HalfOpen:
		if c.probeToken == uuid.Nil {
			c.probeToken = uuid.New()
			return true, c.probeToken
		}
		return false, uuid.Nil
	default:
		return true, uuid.Nil
	}
}

// RecordSuccess resets a source's failure count and, if it was half-open,
// closes the circuit.
func (b *Breaker) RecordSuccess(source string) {
	c := b.circuitFor(source)
	c.mu.Lock()
	wasClosed := c.state == Closed
	c.consecutiveFailures = 0
	c.state = Closed
	c.probeToken = uuid.Nil
	c.mu.Unlock()
	if !wasClosed {
		b.report(source, Closed)
	}
}

// RecordFailure increments a source's failure count, tripping it open at
// the configured threshold; any failure while half-open reopens it
// immediately.
func (b *Breaker) RecordFailure(source string) {
	c := b.circuitFor(source)
	c.mu.Lock()

	if c.state == HalfOpen {
		c.state = Open
		c.openedAt = b.nowFunc()
		c.probeToken = uuid.Nil
		c.mu.Unlock()
		b.report(source, Open)
		return
	}

	wasOpen := c.state == Open
	c.consecutiveFailures++
	tripped := c.consecutiveFailures >= b.openAt
	if tripped {
		c.state = Open
		c.openedAt = b.nowFunc()
	}
	c.mu.Unlock()
	if tripped && !wasOpen {
		b.report(source, Open)
	}
}

// State reports a source's current state for admin/diagnostic use.
func (b *Breaker) State(source string) State {
	c := b.circuitFor(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset restores every source to closed with a zeroed failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits = make(map[string]*circuit)
}
