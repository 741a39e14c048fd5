// Package resilience provides retry and circuit breaker patterns for
// external service calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the circuit breaker's current mode.
type BreakerState int

const (
	// BreakerClosed lets requests flow normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests immediately.
	BreakerOpen
	// BreakerHalfOpen lets a probe request through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected by an open breaker.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip overrides which errors count toward the threshold. Nil
	// means transient errors count.
	ShouldTrip func(err error) bool

	// OnStateChange runs on every transition.
	OnStateChange func(from, to BreakerState)
}

// Breaker guards one external service.
type Breaker struct {
	cfg   BreakerConfig
	mu    sync.Mutex
	state BreakerState

	failures    int
	lastFailure time.Time

	now func() time.Time
}

// NewBreaker creates a circuit breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: BreakerClosed, now: time.Now}
}

// State returns the current state, accounting for reset-timeout expiry.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveState()
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := BreakerVal(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// BreakerVal is Execute for functions that return a value.
func BreakerVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.effectiveState() == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trips := b.cfg.ShouldTrip
	if trips == nil {
		trips = IsTransient
	}

	state := b.effectiveState()
	if err == nil {
		b.failures = 0
		if state == BreakerHalfOpen {
			b.transition(state, BreakerClosed)
		}
		return
	}
	if !trips(err) {
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.transition(state, BreakerOpen)
	}
}

// effectiveState folds the reset timeout into the stored state. Callers hold
// the mutex.
func (b *Breaker) effectiveState() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		b.transition(BreakerOpen, BreakerHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(from, to BreakerState) {
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
