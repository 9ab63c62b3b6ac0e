package framez

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// flaky fails the first n calls.
func flaky(calls *int32, n int32) UnitRef {
	return Func("flaky", func(context.Context, Request, Continuation) (Response, error) {
		if atomic.AddInt32(calls, 1) <= n {
			return nil, errors.New("transient")
		}
		return NewResponse(200, "recovered"), nil
	})
}

func TestRetry(t *testing.T) {
	t.Run("Replays Downstream Until Success", func(t *testing.T) {
		var calls int32
		var seen int32
		p := mustNew(t, testPipeline,
			Always(Use(NewRetry("retry", 3, 0))),
			Always(Func("counter", func(ctx context.Context, req Request, next Continuation) (Response, error) {
				atomic.AddInt32(&seen, 1)
				return next.Invoke(ctx, req)
			})),
			Always(flaky(&calls, 2)),
		)

		res, err := p.Dispatch(context.Background(), NewRequest("GET", "/"))
		if err != nil || res.StatusCode() != 200 {
			t.Fatalf("expected 200, got %v, %v", res, err)
		}
		if calls != 3 || seen != 3 {
			t.Errorf("expected every downstream frame to run 3 times, got %d and %d", calls, seen)
		}
	})

	t.Run("Gives Up After Max Attempts", func(t *testing.T) {
		var calls int32
		p := mustNew(t, testPipeline,
			Always(Use(NewRetry("retry", 2, 0))),
			Always(flaky(&calls, 10)),
		)

		_, err := p.Dispatch(context.Background(), NewRequest("GET", "/"))
		if err == nil || err.Error() != "transient" {
			t.Fatalf("expected last error, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 attempts, got %d", calls)
		}
	})

	t.Run("Non Retryable Error Returns Immediately", func(t *testing.T) {
		var calls int32
		retry := NewRetry("retry", 5, 0).SetRetryable(func(err error) bool {
			return !IsExhausted(err)
		})
		p := mustNew(t, testPipeline,
			Always(Use(retry)),
			Always(Func("pass", func(ctx context.Context, req Request, next Continuation) (Response, error) {
				atomic.AddInt32(&calls, 1)
				return next.Invoke(ctx, req)
			})),
		)

		_, err := p.Dispatch(context.Background(), NewRequest("GET", "/"))
		if !IsExhausted(err) {
			t.Fatalf("expected exhaustion, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected a single attempt, got %d", calls)
		}
	})

	t.Run("Backoff With Fake Clock", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		var calls int32
		p := mustNew(t, testPipeline,
			Always(Use(NewRetry("retry", 3, 100*time.Millisecond).WithClock(clock))),
			Always(flaky(&calls, 2)),
		)

		var err error
		done := make(chan struct{})
		go func() {
			_, err = p.Dispatch(context.Background(), NewRequest("GET", "/"))
			close(done)
		}()

		time.Sleep(10 * time.Millisecond)
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("expected 1 attempt before the first delay, got %d", got)
		}

		clock.Advance(100 * time.Millisecond)
		clock.BlockUntilReady()
		time.Sleep(10 * time.Millisecond)
		if got := atomic.LoadInt32(&calls); got != 2 {
			t.Fatalf("expected 2 attempts after the first delay, got %d", got)
		}

		clock.Advance(200 * time.Millisecond)
		clock.BlockUntilReady()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("retry did not finish")
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
	})

	t.Run("Cancellation During Backoff", func(t *testing.T) {
		var calls int32
		p := mustNew(t, testPipeline,
			Always(Use(NewRetry("retry", 3, time.Hour))),
			Always(flaky(&calls, 10)),
		)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := p.Dispatch(ctx, NewRequest("GET", "/"))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Configuration", func(t *testing.T) {
		r := NewRetry("retry", 0, 0)
		if r.GetMaxAttempts() != 1 {
			t.Errorf("expected attempts clamped to 1, got %d", r.GetMaxAttempts())
		}
		if r.SetMaxAttempts(4).GetMaxAttempts() != 4 {
			t.Error("SetMaxAttempts did not apply")
		}
		if r.SetMaxAttempts(-1).GetMaxAttempts() != 1 {
			t.Error("expected SetMaxAttempts to clamp to 1")
		}
		if r.Name() != "retry" {
			t.Errorf("unexpected name %q", r.Name())
		}
	})
}
