package framez

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Recover is an error boundary. It invokes the rest of the pipeline and
// turns a panic anywhere below it into an error wrapping ErrPanic, with
// the stack attached. With a handler set, downstream errors and panics
// are instead mapped to a response.
//
// The dispatcher itself never recovers; place a Recover frame where a
// boundary is wanted.
//
// Example:
//
//	boundary := framez.NewRecover("boundary").WithHandler(
//	    func(_ context.Context, _ framez.Request, err error) (framez.Response, error) {
//	        return framez.NewResponse(500, "internal error"), nil
//	    },
//	)
type Recover struct {
	handler func(context.Context, Request, error) (Response, error)
	name    Name
}

// PanicError carries a recovered panic value and the stack at the point
// of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPanic, e.Value)
}

// Unwrap lets errors.Is match ErrPanic.
func (*PanicError) Unwrap() error {
	return ErrPanic
}

// NewRecover creates a Recover unit with no handler.
func NewRecover(name Name) *Recover {
	return &Recover{name: name}
}

// WithHandler sets the function that maps downstream failures to a
// response. The handler may itself return an error.
func (r *Recover) WithHandler(fn func(context.Context, Request, error) (Response, error)) *Recover {
	r.handler = fn
	return r
}

// Process implements Unit.
func (r *Recover) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	res, err := r.protect(ctx, req, next)
	if err == nil || r.handler == nil {
		return res, err
	}
	return r.handler(ctx, req, err)
}

func (*Recover) protect(ctx context.Context, req Request, next Continuation) (res Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			res = nil
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return next.Invoke(ctx, req)
}

// Name returns the name of this unit.
func (r *Recover) Name() Name {
	return r.name
}
