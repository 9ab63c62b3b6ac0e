package framez

import (
	"context"
	"log/slog"

	"github.com/zoobzio/clockz"
)

// AccessLog logs one line per request after the rest of the pipeline
// returns: path, status, duration, and the request id when available.
// Failures are logged at error level and returned unchanged.
type AccessLog struct {
	logger *slog.Logger
	clock  clockz.Clock
	name   Name
}

// NewAccessLog creates an AccessLog writing to logger, or to
// slog.Default() when logger is nil.
func NewAccessLog(name Name, logger *slog.Logger) *AccessLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessLog{name: name, logger: logger, clock: clockz.RealClock}
}

// WithClock sets a custom clock for testing.
func (a *AccessLog) WithClock(clock clockz.Clock) *AccessLog {
	a.clock = clock
	return a
}

// Process implements Unit.
func (a *AccessLog) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	start := a.clock.Now()
	res, err := next.Invoke(ctx, req)
	elapsed := a.clock.Since(start)

	attrs := []any{
		slog.String("path", req.Path()),
		slog.Duration("duration", elapsed),
	}
	if r, ok := req.(interface{ ID() string }); ok {
		attrs = append(attrs, slog.String("request_id", r.ID()))
	}
	if r, ok := req.(interface{ Method() string }); ok && r.Method() != "" {
		attrs = append(attrs, slog.String("method", r.Method()))
	}

	if err != nil {
		a.logger.ErrorContext(ctx, "request failed", append(attrs, slog.Any("error", err))...)
		return res, err
	}
	if res != nil {
		attrs = append(attrs, slog.Int("status", res.StatusCode()))
	}
	a.logger.InfoContext(ctx, "request handled", attrs...)
	return res, nil
}

// Name returns the name of this unit.
func (a *AccessLog) Name() Name {
	return a.name
}
