package framez

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// ErrDeadlineExceeded is returned by a Deadline unit when the rest of the
// pipeline does not finish in time. It wraps context.DeadlineExceeded.
var ErrDeadlineExceeded = fmt.Errorf("deadline exceeded: %w", context.DeadlineExceeded)

// Deadline enforces a time limit on everything after it in the pipeline.
// It invokes its continuation with a context that expires after duration
// and returns ErrDeadlineExceeded if the downstream has not returned by
// then.
//
// Downstream units should respect context cancellation. Units that ignore
// it keep running in the background after the deadline fires. A panic
// below the deadline is raised again in the goroutine that called Process.
//
// Example:
//
//	p, _ := framez.New("api",
//	    framez.Always(framez.Use(framez.NewDeadline("deadline", 2*time.Second))),
//	    framez.Always(framez.Lookup("slow-backend")),
//	)
type Deadline struct {
	clock    clockz.Clock
	name     Name
	duration time.Duration
	mu       sync.RWMutex
}

// NewDeadline creates a Deadline unit.
func NewDeadline(name Name, duration time.Duration) *Deadline {
	return &Deadline{
		name:     name,
		duration: duration,
	}
}

// Process implements Unit.
func (d *Deadline) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	d.mu.RLock()
	duration := d.duration
	clock := d.getClock()
	d.mu.RUnlock()

	ctx, cancel := clock.WithTimeout(ctx, duration)
	defer cancel()

	type outcome struct {
		res       Response
		err       error
		recovered any
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- outcome{recovered: v}
			}
		}()
		res, err := next.Invoke(ctx, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.recovered != nil {
			// Re-raise on the caller's goroutine.
			panic(out.recovered)
		}
		return out.res, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrDeadlineExceeded
		}
		return nil, ctx.Err()
	}
}

// SetDuration updates the deadline duration.
func (d *Deadline) SetDuration(duration time.Duration) *Deadline {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duration = duration
	return d
}

// GetDuration returns the current deadline duration.
func (d *Deadline) GetDuration() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.duration
}

// Name returns the name of this unit.
func (d *Deadline) Name() Name {
	return d.name
}

// WithClock sets a custom clock for testing.
func (d *Deadline) WithClock(clock clockz.Clock) *Deadline {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = clock
	return d
}

// getClock returns the clock to use. Callers hold d.mu.
func (d *Deadline) getClock() clockz.Clock {
	if d.clock == nil {
		return clockz.RealClock
	}
	return d.clock
}
