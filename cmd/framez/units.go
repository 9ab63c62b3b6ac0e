package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zoobzio/framez"
)

const (
	tokenAttribute = "token"
	userAttribute  = "user"

	// demoToken is the only token the auth unit accepts.
	demoToken = "secret"
)

// demoRegistry registers the units the example documents refer to.
func demoRegistry(logger *slog.Logger, timeout time.Duration) *framez.Registry {
	registry := framez.NewRegistry()

	registry.Register("access-log", framez.NewAccessLog("access-log", logger))
	registry.Register("deadline", framez.NewDeadline("deadline", timeout))
	registry.Register("rate-limit", framez.NewRateLimit("rate-limit", 50, 10).SetMode(framez.ModeDrop))
	registry.Register("breaker", framez.NewCircuitBreaker("breaker", 5, 30*time.Second))
	registry.Register("recover", framez.NewRecover("recover").WithHandler(
		func(ctx context.Context, _ framez.Request, err error) (framez.Response, error) {
			logger.ErrorContext(ctx, "recovered", slog.Any("error", err))
			return framez.NewResponse(500, "internal error"), nil
		},
	))

	registry.RegisterFunc("auth", authenticate)
	registry.RegisterFunc("api", func(_ context.Context, req framez.Request, _ framez.Continuation) (framez.Response, error) {
		user := "anonymous"
		if r, ok := req.(*framez.BasicRequest); ok {
			if v, ok := r.Attribute(userAttribute); ok {
				user = fmt.Sprint(v)
			}
		}
		return framez.NewResponse(200, fmt.Sprintf("api %s as %s", req.Path(), user)), nil
	})
	registry.RegisterFunc("hello", func(_ context.Context, req framez.Request, _ framez.Continuation) (framez.Response, error) {
		return framez.NewResponse(200, "hello from "+req.Path()), nil
	})
	registry.RegisterFunc("not-found", func(_ context.Context, req framez.Request, _ framez.Continuation) (framez.Response, error) {
		return framez.NewResponse(404, "no frame handled "+req.Path()), nil
	})
	registry.RegisterFunc("panic", func(_ context.Context, req framez.Request, _ framez.Continuation) (framez.Response, error) {
		panic("panic unit reached for " + req.Path())
	})

	return registry
}

// authenticate short-circuits with 401 unless the request carries the
// demo token, and tags the request with a user otherwise.
func authenticate(ctx context.Context, req framez.Request, next framez.Continuation) (framez.Response, error) {
	r, ok := req.(*framez.BasicRequest)
	if !ok {
		return framez.NewResponse(401, "unauthorized"), nil
	}
	token, _ := r.Attribute(tokenAttribute)
	if token != demoToken {
		return framez.NewResponse(401, "unauthorized"), nil
	}
	return next.Invoke(ctx, r.WithAttribute(userAttribute, "demo"))
}
