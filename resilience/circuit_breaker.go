// Package resilience provides retry and circuit-breaker helpers for
// writer I/O: the metadata writer services (CSV flush, Redis publish,
// OTel export) are the only place in this module that calls out to
// something that can be slow or down. The hot mutators — begin, end,
// set — never retry and never go through a circuit breaker; blocking
// them on writer health would violate the spec's "never block the
// instrumented program" design goal.
//
// Adapted from the teacher's resilience/circuit_breaker.go: same
// atomic.Value-held state machine and double-checked-mutex state
// transition, trimmed of the HTTP-service-specific sliding window and
// admin force-open/force-closed controls this domain has no use for.
package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocaliper/caliper/logger"
	"github.com/gocaliper/caliper/metrics"
)

// CircuitState is the breaker's current mode.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute when the breaker is open and rejecting
// calls.
var ErrOpen = errors.New("resilience: circuit breaker open")

// Config tunes a CircuitBreaker.
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // consecutive half-open successes before closing
	OpenTimeout      time.Duration // how long to stay open before probing
}

// DefaultConfig matches the teacher's defaults: five failures to trip,
// two successes to recover, 30s before the first half-open probe.
func DefaultConfig(name string) *Config {
	return &Config{Name: name, FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second}
}

// CircuitBreaker guards a single writer's I/O path. Safe for concurrent
// use; Allow/RecordSuccess/RecordFailure are lock-free on the fast path,
// state transitions take a mutex and re-check under it, same
// double-checked pattern as the teacher's TelemetryCircuitBreaker.
type CircuitBreaker struct {
	cfg   *Config
	log   logger.Logger
	state atomic.Value // CircuitState

	failures  atomic.Int64
	successes atomic.Int64
	openedAt  atomic.Int64 // unix nanos

	mu sync.Mutex
}

// New creates a closed circuit breaker. log may be nil.
func New(cfg *Config, log logger.Logger) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultConfig("writer")
	}
	if log == nil {
		log = logger.NoOp{}
	}
	cb := &CircuitBreaker{cfg: cfg, log: log}
	cb.state.Store(StateClosed)
	return cb
}

// Allow reports whether a call should proceed. Once OpenTimeout has
// elapsed, an open breaker moves itself to half-open and allows the call;
// a half-open breaker allows every call until enough successes close it
// or a failure reopens it.
func (cb *CircuitBreaker) Allow() bool {
	switch cb.state.Load().(CircuitState) {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(time.Unix(0, cb.openedAt.Load())) >= cb.cfg.OpenTimeout {
			cb.transition(StateOpen, StateHalfOpen)
			return cb.state.Load().(CircuitState) == StateHalfOpen
		}
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	switch cb.state.Load().(CircuitState) {
	case StateHalfOpen:
		if cb.successes.Add(1) >= int64(cb.cfg.SuccessThreshold) {
			cb.transition(StateHalfOpen, StateClosed)
		}
	case StateClosed:
		// already healthy
	}
	metrics.Counter("resilience", "circuit_success", 1, cb.cfg.Name)
}

// RecordFailure reports a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.successes.Store(0)
	switch cb.state.Load().(CircuitState) {
	case StateClosed:
		if cb.failures.Add(1) >= int64(cb.cfg.FailureThreshold) {
			cb.transition(StateClosed, StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateHalfOpen, StateOpen)
	}
	metrics.Counter("resilience", "circuit_failure", 1, cb.cfg.Name)
}

func (cb *CircuitBreaker) transition(from, to CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Re-check under the lock: another goroutine may have already moved
	// the state since our caller last loaded it.
	if cb.state.Load().(CircuitState) != from {
		return
	}

	cb.state.Store(to)
	cb.failures.Store(0)
	cb.successes.Store(0)
	if to == StateOpen {
		cb.openedAt.Store(time.Now().UnixNano())
	}

	cb.log.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.cfg.Name, "from": from.String(), "to": to.String(),
	})
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	return cb.state.Load().(CircuitState)
}

// Execute runs fn only if Allow reports true, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
