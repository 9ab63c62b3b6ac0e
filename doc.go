// Package framez dispatches requests through an ordered sequence of
// processing units ("frames").
//
// # Overview
//
// Each unit receives the request and a Continuation standing for the rest
// of the pipeline. A unit can answer on its own, hand the request on, or
// run code around whatever the rest of the pipeline returns:
//
//	type Unit interface {
//	    Process(ctx context.Context, req Request, next Continuation) (Response, error)
//	}
//
// framez only sequences units. It is not a router or an HTTP transport;
// requests and responses are opaque values with a path and a status code.
//
// # Frames
//
// A Frame pairs a unit reference with optional conditions:
//
//	framez.Always(framez.Use(unit))                 // a unit instance
//	framez.Always(framez.Func("log", logFn))        // a bare function
//	framez.Always(framez.Lookup("auth"))            // resolved through a Container
//	framez.When(framez.Lookup("auth"), framez.Path("/api"))
//
// Conditions are evaluated in order when traversal reaches the frame.
// Bool(true) passes, Bool(false) skips, Path(prefix) uses the built-in
// PathMatcher and Match(m) uses any Matcher. A frame whose conditions fail
// is skipped and traversal moves on to the next one.
//
// Lookup references are resolved on every traversal, never at
// construction, so a Container can hand out fresh instances.
//
// Parse accepts the same shapes loosely typed (strings, funcs, units,
// []any{conditions..., unit}) and converts them once:
//
//	p, err := framez.Compose("api", registry,
//	    logFn,
//	    []any{"/api", "auth"},
//	    handler,
//	)
//
// # Dispatch and nesting
//
// Dispatch starts at the first frame. If every frame delegates and the
// sequence runs out, Dispatch fails with ErrExhausted. Process does the
// same but falls through to the continuation it was given, which is how a
// Pipeline sits inside another pipeline:
//
//	inner, _ := framez.New("inner", framez.Always(framez.Use(auth)))
//	outer, _ := framez.New("outer",
//	    framez.Always(framez.Use(inner)),   // falls through to handler
//	    framez.Always(framez.Use(handler)),
//	)
//
// The traversal position travels with each continuation, so a Pipeline is
// safe to dispatch concurrently and may appear in its own call tree.
//
// # Errors
//
// Configuration and resolution failures are reported as *Error values
// wrapping ErrEmptyPipeline, ErrInvalidCondition, ErrUnresolvableUnit or
// ErrExhausted, or the Container's own error. Function units that return
// no response fail with ErrInvalidResponse. Errors returned by units are
// passed back unchanged. Nothing is retried or recovered by the
// dispatcher; use the Recover and Retry units for that.
package framez
