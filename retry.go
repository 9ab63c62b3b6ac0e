package framez

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Retry re-invokes the rest of the pipeline when it fails, waiting with
// exponential backoff between attempts: baseDelay, 2*baseDelay, 4*baseDelay...
//
// Because continuations pin their position, re-invoking one replays the
// same downstream frames from the start each time.
//
// Example:
//
//	p, _ := framez.New("upstream",
//	    framez.Always(framez.Use(framez.NewRetry("retry", 3, 100*time.Millisecond))),
//	    framez.Always(framez.Lookup("flaky-backend")),
//	)
type Retry struct {
	clock       clockz.Clock
	retryable   func(error) bool
	name        Name
	baseDelay   time.Duration
	maxAttempts int
	mu          sync.RWMutex
}

// NewRetry creates a Retry unit. maxAttempts below 1 is treated as 1.
func NewRetry(name Name, maxAttempts int, baseDelay time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retry{
		name:        name,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Process implements Unit.
func (r *Retry) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	r.mu.RLock()
	maxAttempts := r.maxAttempts
	delay := r.baseDelay
	retryable := r.retryable
	clock := r.getClock()
	r.mu.RUnlock()

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		res, err := next.Invoke(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return res, err
		}
		if i == maxAttempts-1 {
			break
		}

		select {
		case <-clock.After(delay):
			delay *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// SetRetryable restricts retries to errors for which fn returns true.
func (r *Retry) SetRetryable(fn func(error) bool) *Retry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryable = fn
	return r
}

// SetMaxAttempts updates the maximum number of attempts.
func (r *Retry) SetMaxAttempts(n int) *Retry {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxAttempts = n
	return r
}

// GetMaxAttempts returns the current maximum attempts setting.
func (r *Retry) GetMaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxAttempts
}

// Name returns the name of this unit.
func (r *Retry) Name() Name {
	return r.name
}

// WithClock sets a custom clock for testing.
func (r *Retry) WithClock(clock clockz.Clock) *Retry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

// getClock returns the clock to use. Callers hold r.mu.
func (r *Retry) getClock() clockz.Clock {
	if r.clock == nil {
		return clockz.RealClock
	}
	return r.clock
}
