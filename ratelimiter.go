package framez

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Rate limiter modes.
const (
	ModeWait = "wait"
	ModeDrop = "drop"
)

// ErrRateLimited is returned by a RateLimit unit in drop mode when no
// token is available.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit admits requests to the rest of the pipeline through a token
// bucket. In wait mode (the default) it blocks until a token is available
// or the context ends; in drop mode it fails at once with ErrRateLimited.
//
// A RateLimit holds its bucket across requests, so register one instance
// and share it rather than building one per dispatch.
type RateLimit struct {
	limiter *rate.Limiter
	name    Name
	mode    string
	mu      sync.RWMutex
}

// NewRateLimit creates a RateLimit allowing ratePerSecond requests with
// bursts of up to burst.
func NewRateLimit(name Name, ratePerSecond float64, burst int) *RateLimit {
	return &RateLimit{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		mode:    ModeWait,
	}
}

// Process implements Unit.
func (r *RateLimit) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	r.mu.RLock()
	limiter := r.limiter
	mode := r.mode
	r.mu.RUnlock()

	if mode == ModeDrop {
		if !limiter.Allow() {
			return nil, ErrRateLimited
		}
		return next.Invoke(ctx, req)
	}

	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return next.Invoke(ctx, req)
}

// SetRate updates the sustained rate in requests per second.
func (r *RateLimit) SetRate(ratePerSecond float64) *RateLimit {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
	return r
}

// SetBurst updates the burst capacity.
func (r *RateLimit) SetBurst(burst int) *RateLimit {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetBurst(burst)
	return r
}

// SetMode sets ModeWait or ModeDrop. Other values are ignored.
func (r *RateLimit) SetMode(mode string) *RateLimit {
	if mode != ModeWait && mode != ModeDrop {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return r
}

// GetRate returns the current rate.
func (r *RateLimit) GetRate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return float64(r.limiter.Limit())
}

// GetBurst returns the current burst capacity.
func (r *RateLimit) GetBurst() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter.Burst()
}

// GetMode returns the current mode.
func (r *RateLimit) GetMode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// Name returns the name of this unit.
func (r *RateLimit) Name() Name {
	return r.name
}
