// Package breaker implements the closed/open/half-open circuit breaker
// gating the downstream forwarder (spec §4.4). The state machine is
// bespoke: it trips on a failure *ratio* rather than consecutive
// failures, closes only from half-open on a single success, and decays
// its counters once they grow large. None of this matches sony/gobreaker's
// consecutive-failure, generation-based model, so the FSM is hand-rolled
// here, grounded on original_source/services/authgw/downstream.py's
// Breaker class.
package breaker

import (
	"math"
	"sync"
	"time"
)

// State is one of closed, open, half_open.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// decayThreshold is the total-count watermark at which counters are
// contracted to keep the ratio but bound memory/precision drift (spec
// §4.4: "when total ≥ 1000, contract to (total=100, fail=round(ratio·100))").
const decayThreshold = 1000

// Config configures a Breaker.
type Config struct {
	// FailureThreshold accepts either a fraction in (0,1] or an integer
	// percentage (e.g. 20 means 0.20), per spec §4.4.
	FailureThreshold float64
	HalfOpenAfter    time.Duration
	Now              func() time.Time
}

// normalizedThreshold converts an integer-percentage threshold (>1) to a
// fraction.
func (c Config) normalizedThreshold() float64 {
	if c.FailureThreshold > 1 {
		return c.FailureThreshold / 100.0
	}
	return c.FailureThreshold
}

// Breaker is a single shared, mutex-guarded state machine per downstream
// target (spec §5).
type Breaker struct {
	mu    sync.Mutex
	cfg   Config
	state State

	total    int
	fail     int
	openedAt time.Time
}

// New constructs a Breaker in the closed state.
func New(cfg Config) *Breaker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a request may proceed, transitioning open->half_open
// when the cooldown has elapsed (spec §4.4).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.cfg.Now().Sub(b.openedAt) >= b.cfg.HalfOpenAfter {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// State returns the current FSM state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Record reports the outcome of a request that Allow() admitted. Per spec
// §4.4 / §9 open question (b), 4xx responses are never reported as
// failures (callers must not call Record for them at all, or pass ok=true).
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		if ok {
			b.state = StateClosed
			b.total, b.fail = 0, 0
			return
		}
		b.open()
		return
	case StateOpen:
		// A request slipped through a race between Allow() and a
		// concurrent state change; treat like half-open would.
		if !ok {
			b.open()
		}
		return
	default: // closed
		b.total++
		if !ok {
			b.fail++
		}
		b.decayIfNeeded()
		if b.shouldOpen() {
			b.open()
		}
	}
}

func (b *Breaker) shouldOpen() bool {
	if b.total == 0 {
		return false
	}
	ratio := float64(b.fail) / float64(b.total)
	return ratio >= b.cfg.normalizedThreshold()
}

func (b *Breaker) decayIfNeeded() {
	if b.total < decayThreshold {
		return
	}
	ratio := float64(b.fail) / float64(b.total)
	b.total = 100
	b.fail = int(math.Round(ratio * 100))
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.cfg.Now()
	b.total, b.fail = 0, 0
}
