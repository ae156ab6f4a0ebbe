package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpenState is returned while the breaker is rejecting all calls
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe budget is spent
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State represents the breaker state
type State int

const (
	// StateClosed passes every call through
	StateClosed State = iota

	// StateOpen rejects every call until the cooldown elapses
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls test recovery
	StateHalfOpen
)

func (s State) String() string {
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

// Config holds circuit breaker settings
type Config struct {
	// MaxFailures is the consecutive-failure threshold that opens the circuit
	MaxFailures uint

	// Timeout is the open-state cooldown before probing resumes
	Timeout time.Duration

	// MaxHalfOpenRequests bounds concurrent probe calls in half-open state
	MaxHalfOpenRequests uint

	// IsSuccessful classifies a call result. Defaults to err == nil.
	IsSuccessful func(error) bool
}

// DefaultConfig returns sensible defaults for an upstream API breaker
func DefaultConfig() Config {
	return Config{
		MaxFailures:         5,
		Timeout:             60 * time.Second,
		MaxHalfOpenRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
}

// CircuitBreaker guards an unreliable upstream. After MaxFailures consecutive
// failures calls are rejected outright for the cooldown period, then a few
// probes are let through; one probe failure reopens the circuit.
type CircuitBreaker struct {
	cfg Config

	mu        sync.RWMutex
	state     State
	failures  uint
	successes uint
	probes    uint
	changedAt time.Time
}

// New creates a circuit breaker in the closed state
func New(cfg Config) *CircuitBreaker {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil
		}
	}

	return &CircuitBreaker{
		cfg:       cfg,
		state:     StateClosed,
		changedAt: time.Now(),
	}
}

// Execute runs fn if the breaker admits the call, then records the outcome.
// Rejected calls return ErrOpenState or ErrTooManyRequests without invoking
// fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.changedAt) > cb.cfg.Timeout {
			cb.transition(StateHalfOpen)
			cb.probes++
			return nil
		}
		return ErrOpenState

	case StateHalfOpen:
		if cb.probes >= cb.cfg.MaxHalfOpenRequests {
			return ErrTooManyRequests
		}
		cb.probes++
		return nil

	default:
		return ErrOpenState
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.cfg.IsSuccessful(err) {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
			cb.transition(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.MaxHalfOpenRequests {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) transition(state State) {
	cb.state = state
	cb.changedAt = time.Now()
	cb.successes = 0
	cb.probes = 0
	if state == StateClosed {
		cb.failures = 0
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() uint {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset forces the breaker back to the closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}
