package framez

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestAccessLog(t *testing.T) {
	newLogger := func() (*slog.Logger, *bytes.Buffer) {
		var buf bytes.Buffer
		return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
	}

	t.Run("Logs Handled Request", func(t *testing.T) {
		logger, buf := newLogger()
		clock := clockz.NewFakeClock()
		req := NewRequest("GET", "/orders")

		p := mustNew(t, testPipeline,
			Always(Use(NewAccessLog("access", logger).WithClock(clock))),
			Always(Func("handler", func(context.Context, Request, Continuation) (Response, error) {
				clock.Advance(25 * time.Millisecond)
				return NewResponse(201, "created"), nil
			})),
		)

		res, err := p.Dispatch(context.Background(), req)
		if err != nil || res.StatusCode() != 201 {
			t.Fatalf("expected 201, got %v, %v", res, err)
		}

		out := buf.String()
		for _, want := range []string{
			`msg="request handled"`,
			"path=/orders",
			"status=201",
			"method=GET",
			"duration=25ms",
			"request_id=" + req.ID(),
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected log to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("Logs Failure And Returns It", func(t *testing.T) {
		logger, buf := newLogger()
		boom := errors.New("boom")
		p := mustNew(t, testPipeline,
			Always(Use(NewAccessLog("access", logger))),
			Always(Func("failing", func(context.Context, Request, Continuation) (Response, error) {
				return nil, boom
			})),
		)

		_, err := p.Dispatch(context.Background(), NewRequest("POST", "/fail"))
		if !errors.Is(err, boom) {
			t.Fatalf("expected error unchanged, got %v", err)
		}

		out := buf.String()
		if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "error=boom") {
			t.Errorf("expected error log, got %q", out)
		}
	})

	t.Run("Plain Request", func(t *testing.T) {
		logger, buf := newLogger()
		unit := NewAccessLog("access", logger)
		next := ContinuationFunc(func(context.Context, Request) (Response, error) {
			return NewResponse(200, ""), nil
		})

		if _, err := unit.Process(context.Background(), plainRequest("/plain"), next); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "request_id") {
			t.Errorf("expected no request id for a plain request, got %q", buf.String())
		}
		if unit.Name() != "access" {
			t.Errorf("unexpected name %q", unit.Name())
		}
	})

	t.Run("Nil Logger Uses Default", func(t *testing.T) {
		if NewAccessLog("access", nil).logger == nil {
			t.Error("expected default logger")
		}
	})
}

// plainRequest is a Request with nothing but a path.
type plainRequest string

func (r plainRequest) Path() string { return string(r) }
