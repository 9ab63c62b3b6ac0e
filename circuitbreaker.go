package framez

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
)

// Circuit breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreakerEventStateChange is emitted when the breaker changes state.
const CircuitBreakerEventStateChange = hookz.Key("circuit_breaker.state_change")

// ErrCircuitOpen is returned by an open CircuitBreaker without invoking the
// rest of the pipeline.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerEvent describes a state transition.
type CircuitBreakerEvent struct {
	Timestamp time.Time
	Name      Name
	From      string
	To        string
	Failures  int
}

// CircuitBreaker stops invoking the rest of the pipeline after repeated
// failures. Once failureThreshold consecutive downstream errors are seen
// the breaker opens and fails fast with ErrCircuitOpen. After resetTimeout
// it lets requests through again (half-open); successThreshold successes
// close it and any failure opens it again.
//
// A CircuitBreaker holds state across requests, so register one instance
// and share it rather than building one per dispatch.
//
// Example:
//
//	breaker := framez.NewCircuitBreaker("backend-breaker", 5, 30*time.Second)
//	p, _ := framez.New("upstream",
//	    framez.Always(framez.Use(breaker)),
//	    framez.Always(framez.Lookup("backend")),
//	)
type CircuitBreaker struct {
	lastFailTime     time.Time
	clock            clockz.Clock
	hooks            *hookz.Hooks[CircuitBreakerEvent]
	name             Name
	state            string
	mu               sync.Mutex
	resetTimeout     time.Duration
	generation       int
	failureThreshold int
	successThreshold int
	failures         int
	successes        int
}

// NewCircuitBreaker creates a closed CircuitBreaker. failureThreshold below
// 1 is treated as 1.
func NewCircuitBreaker(name Name, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: 1,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
		hooks:            hookz.New[CircuitBreakerEvent](),
	}
}

// Process implements Unit.
func (cb *CircuitBreaker) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	cb.mu.Lock()
	clock := cb.getClock()
	if cb.state == StateOpen && clock.Since(cb.lastFailTime) > cb.resetTimeout {
		cb.transition(ctx, StateHalfOpen)
		cb.failures = 0
		cb.successes = 0
		cb.generation++
	}
	if cb.state == StateOpen {
		cb.mu.Unlock()
		return nil, ErrCircuitOpen
	}
	generation := cb.generation
	cb.mu.Unlock()

	res, err := next.Invoke(ctx, req)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Results from before a reset or state change do not count.
	if cb.generation != generation {
		return res, err
	}
	if err != nil {
		cb.onFailure(ctx)
		return res, err
	}
	cb.onSuccess(ctx)
	return res, nil
}

func (cb *CircuitBreaker) onSuccess(ctx context.Context) {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.transition(ctx, StateClosed)
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) onFailure(ctx context.Context) {
	cb.lastFailTime = cb.getClock().Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.transition(ctx, StateOpen)
		}
	case StateHalfOpen:
		cb.transition(ctx, StateOpen)
		cb.failures = 0
		cb.successes = 0
	}
}

// transition changes state and emits the change. Callers hold cb.mu.
func (cb *CircuitBreaker) transition(ctx context.Context, to string) {
	from := cb.state
	cb.state = to
	_ = cb.hooks.Emit(ctx, CircuitBreakerEventStateChange, CircuitBreakerEvent{ //nolint:errcheck
		Name:      cb.name,
		From:      from,
		To:        to,
		Failures:  cb.failures,
		Timestamp: cb.getClock().Now(),
	})
}

// OnStateChange registers a handler for state transitions.
// Handlers run asynchronously.
func (cb *CircuitBreaker) OnStateChange(handler func(context.Context, CircuitBreakerEvent) error) error {
	_, err := cb.hooks.Hook(CircuitBreakerEventStateChange, handler)
	return err
}

// SetSuccessThreshold sets how many half-open successes close the breaker.
func (cb *CircuitBreaker) SetSuccessThreshold(n int) *CircuitBreaker {
	if n < 1 {
		n = 1
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successThreshold = n
	return cb
}

// SetResetTimeout updates how long the breaker stays open.
func (cb *CircuitBreaker) SetResetTimeout(d time.Duration) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.resetTimeout = d
	return cb
}

// GetState returns the current state. An open breaker whose reset timeout
// has passed reports half-open.
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.getClock().Since(cb.lastFailTime) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and discards in-flight results.
func (cb *CircuitBreaker) Reset() *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.generation++
	return cb
}

// WithClock sets a custom clock for testing.
func (cb *CircuitBreaker) WithClock(clock clockz.Clock) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = clock
	return cb
}

func (cb *CircuitBreaker) getClock() clockz.Clock {
	if cb.clock == nil {
		return clockz.RealClock
	}
	return cb.clock
}

// Name returns the name of this unit.
func (cb *CircuitBreaker) Name() Name {
	return cb.name
}

// Close releases the hook registry.
func (cb *CircuitBreaker) Close() error {
	cb.hooks.Close()
	return nil
}
