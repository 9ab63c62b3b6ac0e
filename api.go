package framez

import "context"

// Name is a type alias for pipeline, unit, and frame names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
//
// Example:
//
//	const (
//	    AuthName    framez.Name = "auth"
//	    HandlerName framez.Name = "handler"
//	)
type Name = string

// Request is the inbound value threaded through a pipeline.
// framez treats requests as opaque; the only shape it relies on is the
// path, which the built-in matchers inspect.
type Request interface {
	Path() string
}

// Response is the value a pipeline produces.
// Like Request it is opaque to the dispatcher. Function units are checked
// for returning a non-nil Response.
type Response interface {
	StatusCode() int
}

// Unit is a single processing step. It receives the request and a
// Continuation representing the rest of the pipeline.
//
// A unit may:
//   - return a response without invoking next (short-circuit)
//   - return whatever next produces (delegate)
//   - run code before and after next (wrap)
//
// Pipeline itself implements Unit, so pipelines nest inside pipelines.
type Unit interface {
	Process(ctx context.Context, req Request, next Continuation) (Response, error)
}

// Continuation is the callable handed to each unit that stands for
// "everything after me". Invoking it advances the pipeline by one frame.
// When the pipeline is exhausted it falls through to the enclosing
// pipeline's continuation, or fails with ErrExhausted at the root.
type Continuation interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc is the bare function shape accepted as a unit.
type HandlerFunc func(ctx context.Context, req Request, next Continuation) (Response, error)

// ContinuationFunc adapts a function to the Continuation contract.
// It is mostly useful as the outer fallback passed to Pipeline.Process.
type ContinuationFunc func(ctx context.Context, req Request) (Response, error)

// Invoke calls f(ctx, req).
func (f ContinuationFunc) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Container is the lookup collaborator used to resolve units by name.
// framez never inspects how names are registered; it only calls Get,
// lazily, when traversal reaches a Lookup frame. An error from Get comes
// back from Dispatch wrapped in *Error, naming the pipeline and frame;
// errors.Is and errors.As still reach the container's error.
type Container interface {
	Get(name string) (any, error)
}

// Named is implemented by units that report their own name. Names appear
// in errors, spans, and hook events.
type Named interface {
	Name() Name
}
