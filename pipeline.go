package framez

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Pipeline.
const (
	// Metrics.
	PipelineDispatchedTotal     = metricz.Key("pipeline.dispatched.total")
	PipelineSuccessesTotal      = metricz.Key("pipeline.successes.total")
	PipelineFailuresTotal       = metricz.Key("pipeline.failures.total")
	PipelineFramesExecutedTotal = metricz.Key("pipeline.frames.executed.total")
	PipelineFramesSkippedTotal  = metricz.Key("pipeline.frames.skipped.total")
	PipelineExhaustedTotal      = metricz.Key("pipeline.exhausted.total")
	PipelineFallthroughTotal    = metricz.Key("pipeline.fallthrough.total")
	PipelineDurationMs          = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineDispatchSpan = tracez.Key("pipeline.dispatch")
	PipelineFrameSpan    = tracez.Key("pipeline.frame")

	// Tags.
	PipelineTagName       = tracez.Tag("pipeline.name")
	PipelineTagPath       = tracez.Tag("pipeline.request_path")
	PipelineTagNested     = tracez.Tag("pipeline.nested")
	PipelineTagFrameIndex = tracez.Tag("pipeline.frame_index")
	PipelineTagUnitName   = tracez.Tag("pipeline.unit_name")
	PipelineTagSuccess    = tracez.Tag("pipeline.success")
	PipelineTagError      = tracez.Tag("pipeline.error")

	// Hook event keys.
	PipelineEventFrameSkipped  = hookz.Key("pipeline.frame_skipped")
	PipelineEventFrameComplete = hookz.Key("pipeline.frame_complete")
	PipelineEventExhausted     = hookz.Key("pipeline.exhausted")
	PipelineEventComplete      = hookz.Key("pipeline.complete")
)

// PipelineEvent is emitted via hookz as frames are skipped or completed,
// when a sequence is exhausted, and when a dispatch returns.
type PipelineEvent struct {
	Timestamp  time.Time     // When the event occurred
	Error      error         // Error if the frame or dispatch failed
	Name       Name          // Pipeline name
	UnitName   Name          // Unit of the frame (frame events only)
	Path       string        // Request path
	FrameIndex int           // Frame position, -1 for dispatch events
	Duration   time.Duration // Time spent in the frame, including downstream
	Success    bool          // Whether the frame or dispatch succeeded
	Nested     bool          // Whether the pipeline ran inside another pipeline
}

// Pipeline sequences frames and dispatches requests through them.
//
// A Pipeline is built once and reused. The traversal position lives in
// the continuation handed to each unit, not on the Pipeline, so a single
// instance can serve concurrent dispatches and can appear more than once
// in its own call tree.
//
// Resolution is lazy: each frame's conditions are evaluated and its unit
// resolved only when traversal reaches it. Frames whose conditions fail
// are skipped without running anything.
//
// # Observability
//
// Metrics:
//   - pipeline.dispatched.total: Counter of Dispatch and Process calls
//   - pipeline.successes.total: Counter of calls returning a response
//   - pipeline.failures.total: Counter of calls returning an error
//   - pipeline.frames.executed.total: Counter of units invoked
//   - pipeline.frames.skipped.total: Counter of frames skipped by conditions
//   - pipeline.exhausted.total: Counter of exhaustion failures
//   - pipeline.fallthrough.total: Counter of hand-offs to an outer continuation
//   - pipeline.duration.ms: Gauge of the last call's duration
//
// Traces:
//   - pipeline.dispatch: Span for each Dispatch or Process call
//   - pipeline.frame: Child span for each executed frame
//
// Events (via hooks):
//   - pipeline.frame_skipped: A conditional frame did not apply
//   - pipeline.frame_complete: A unit returned
//   - pipeline.exhausted: The sequence ran out with no outer continuation
//   - pipeline.complete: Dispatch or Process returned
//
// Example:
//
//	p, err := framez.New("api",
//	    framez.Always(framez.Func("log", logRequest)),
//	    framez.When(framez.Lookup("auth"), framez.Path("/api")),
//	    framez.Always(framez.Use(handler)),
//	)
//	if err != nil {
//	    return err
//	}
//	res, err := p.Dispatch(ctx, req)
type Pipeline struct {
	container Container
	clock     clockz.Clock
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[PipelineEvent]
	name      Name
	frames    []Frame
	mu        sync.RWMutex
}

// New creates a Pipeline over frames. It fails with ErrEmptyPipeline when
// no frames are given, and with ErrInvalidCondition or ErrUnresolvableUnit
// when a frame is malformed. Lookup frames need a Container; see
// NewWithContainer.
func New(name Name, frames ...Frame) (*Pipeline, error) {
	return NewWithContainer(name, nil, frames...)
}

// NewWithContainer creates a Pipeline whose Lookup frames resolve through
// container. A nil container is allowed; reaching a Lookup frame then
// fails with ErrUnresolvableUnit.
func NewWithContainer(name Name, container Container, frames ...Frame) (*Pipeline, error) {
	if len(frames) == 0 {
		return nil, &Error{Err: ErrEmptyPipeline, Path: []Name{name}, Frame: -1, Timestamp: time.Now()}
	}
	for i, f := range frames {
		if err := f.validate(); err != nil {
			return nil, &Error{Err: err, Path: []Name{name}, Frame: i, Timestamp: time.Now()}
		}
	}

	metrics := metricz.New()
	metrics.Counter(PipelineDispatchedTotal)
	metrics.Counter(PipelineSuccessesTotal)
	metrics.Counter(PipelineFailuresTotal)
	metrics.Counter(PipelineFramesExecutedTotal)
	metrics.Counter(PipelineFramesSkippedTotal)
	metrics.Counter(PipelineExhaustedTotal)
	metrics.Counter(PipelineFallthroughTotal)
	metrics.Gauge(PipelineDurationMs)

	return &Pipeline{
		name:      name,
		frames:    slices.Clone(frames),
		container: container,
		metrics:   metrics,
		tracer:    tracez.New(),
		hooks:     hookz.New[PipelineEvent](),
	}, nil
}

// Compose parses loosely typed frame specs (see Parse) and builds a
// Pipeline from them.
func Compose(name Name, container Container, specs ...any) (*Pipeline, error) {
	frames, err := Parse(specs...)
	if err != nil {
		return nil, &Error{Err: err, Path: []Name{name}, Frame: -1, Timestamp: time.Now()}
	}
	return NewWithContainer(name, container, frames...)
}

// Dispatch runs req through the pipeline from the first frame and returns
// the response of whichever unit ends the chain. Running past the last
// frame fails with ErrExhausted. A nil ctx is treated as
// context.Background; a nil req fails with ErrNilRequest.
func (p *Pipeline) Dispatch(ctx context.Context, req Request) (Response, error) {
	return p.run(ctx, req, nil)
}

// Process implements Unit, which lets a Pipeline sit inside another
// pipeline. It behaves like Dispatch except that running past the last
// frame hands the request to next instead of failing.
func (p *Pipeline) Process(ctx context.Context, req Request, next Continuation) (Response, error) {
	return p.run(ctx, req, next)
}

func (p *Pipeline) run(ctx context.Context, req Request, outer Continuation) (res Response, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, p.fail(nil, -1, ErrNilRequest)
	}
	clock := p.getClock()
	start := clock.Now()
	nested := outer != nil

	p.metrics.Counter(PipelineDispatchedTotal).Inc()

	ctx, span := p.tracer.StartSpan(ctx, PipelineDispatchSpan)
	span.SetTag(PipelineTagName, p.name)
	span.SetTag(PipelineTagPath, req.Path())
	span.SetTag(PipelineTagNested, strconv.FormatBool(nested))
	defer func() {
		elapsed := clock.Since(start)
		p.metrics.Gauge(PipelineDurationMs).Set(float64(elapsed.Milliseconds()))
		if err == nil {
			span.SetTag(PipelineTagSuccess, "true")
			p.metrics.Counter(PipelineSuccessesTotal).Inc()
		} else {
			span.SetTag(PipelineTagSuccess, "false")
			span.SetTag(PipelineTagError, err.Error())
			p.metrics.Counter(PipelineFailuresTotal).Inc()
		}
		span.Finish()

		_ = p.hooks.Emit(ctx, PipelineEventComplete, PipelineEvent{ //nolint:errcheck
			Name:       p.name,
			Path:       req.Path(),
			FrameIndex: -1,
			Success:    err == nil,
			Error:      err,
			Duration:   elapsed,
			Nested:     nested,
			Timestamp:  clock.Now(),
		})
	}()

	root := &continuation{pipeline: p, position: -1, outer: outer}
	return root.Invoke(ctx, req)
}

// resolve finds the first applicable frame at or after from and returns
// its unit and index. A nil unit with a nil error means the sequence is
// exhausted.
func (p *Pipeline) resolve(ctx context.Context, req Request, from int) (Unit, int, error) {
	for i := from; i < len(p.frames); i++ {
		frame := p.frames[i]
		if !p.applies(frame, req) {
			p.metrics.Counter(PipelineFramesSkippedTotal).Inc()
			_ = p.hooks.Emit(ctx, PipelineEventFrameSkipped, PipelineEvent{ //nolint:errcheck
				Name:       p.name,
				UnitName:   frame.ref.name,
				Path:       req.Path(),
				FrameIndex: i,
				Success:    true,
				Timestamp:  p.getClock().Now(),
			})
			continue
		}

		unit, err := p.resolveRef(frame.ref)
		if err != nil {
			return nil, i, p.fail(req, i, err)
		}
		return unit, i, nil
	}
	return nil, len(p.frames), nil
}

// applies evaluates a frame's conditions in order.
func (*Pipeline) applies(frame Frame, req Request) bool {
	for _, c := range frame.conditions {
		if !c.passes(req) {
			return false
		}
	}
	return true
}

// resolveRef turns a unit reference into a Unit for a single invocation.
// The result is never cached back into the frame.
func (p *Pipeline) resolveRef(ref UnitRef) (Unit, error) {
	switch ref.kind {
	case refDirect:
		return ref.unit, nil
	case refFunc:
		return Adapt(ref.name, ref.fn), nil
	case refLookup:
		container := p.getContainer()
		if container == nil {
			return nil, fmt.Errorf("%w (%s)", ErrUnresolvableUnit, ref.name)
		}
		v, err := container.Get(ref.name)
		if err != nil {
			return nil, err
		}
		unit, ok := asUnit(ref.name, v)
		if !ok {
			return nil, fmt.Errorf("%w (%T)", ErrUnresolvableUnit, v)
		}
		return unit, nil
	default:
		return nil, ErrUnresolvableUnit
	}
}

// execute runs unit at index with next as its continuation.
func (p *Pipeline) execute(ctx context.Context, req Request, unit Unit, index int, next Continuation) (Response, error) {
	clock := p.getClock()
	name := p.frames[index].ref.name
	if name == "" {
		name = unitName(unit)
	}

	ctx, span := p.tracer.StartSpan(ctx, PipelineFrameSpan)
	span.SetTag(PipelineTagName, p.name)
	span.SetTag(PipelineTagFrameIndex, strconv.Itoa(index))
	span.SetTag(PipelineTagUnitName, name)

	p.metrics.Counter(PipelineFramesExecutedTotal).Inc()
	start := clock.Now()
	res, err := unit.Process(ctx, req, next)
	elapsed := clock.Since(start)

	if err != nil {
		span.SetTag(PipelineTagSuccess, "false")
		span.SetTag(PipelineTagError, err.Error())
	} else {
		span.SetTag(PipelineTagSuccess, "true")
	}
	span.Finish()

	_ = p.hooks.Emit(ctx, PipelineEventFrameComplete, PipelineEvent{ //nolint:errcheck
		Name:       p.name,
		UnitName:   name,
		Path:       req.Path(),
		FrameIndex: index,
		Success:    err == nil,
		Error:      err,
		Duration:   elapsed,
		Timestamp:  clock.Now(),
	})

	return res, err
}

// exhausted records an exhaustion failure.
func (p *Pipeline) exhausted(ctx context.Context, req Request) error {
	p.metrics.Counter(PipelineExhaustedTotal).Inc()
	_ = p.hooks.Emit(ctx, PipelineEventExhausted, PipelineEvent{ //nolint:errcheck
		Name:       p.name,
		Path:       req.Path(),
		FrameIndex: len(p.frames),
		Error:      ErrExhausted,
		Timestamp:  p.getClock().Now(),
	})
	return p.fail(req, -1, ErrExhausted)
}

// fail wraps err with the pipeline's context.
func (p *Pipeline) fail(req Request, index int, err error) error {
	path := []Name{p.name}
	if index >= 0 && index < len(p.frames) {
		path = append(path, p.frames[index].ref.name)
	}
	return &Error{
		Err:       err,
		Path:      path,
		Frame:     index,
		Request:   req,
		Timestamp: p.getClock().Now(),
	}
}

// Name returns the name of this pipeline.
func (p *Pipeline) Name() Name {
	return p.name
}

// Len returns the number of frames.
func (p *Pipeline) Len() int {
	return len(p.frames)
}

// Frames returns a copy of the frame sequence.
func (p *Pipeline) Frames() []Frame {
	return slices.Clone(p.frames)
}

// Container returns the lookup collaborator, which may be nil.
func (p *Pipeline) Container() Container {
	return p.getContainer()
}

// Metrics returns the metrics registry for this pipeline.
func (p *Pipeline) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this pipeline.
func (p *Pipeline) Tracer() *tracez.Tracer {
	return p.tracer
}

// Close gracefully shuts down observability components.
func (p *Pipeline) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// OnFrameSkipped registers a handler for frames skipped by their conditions.
// Handlers run asynchronously.
func (p *Pipeline) OnFrameSkipped(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventFrameSkipped, handler)
	return err
}

// OnFrameComplete registers a handler for each unit that returns.
// Handlers run asynchronously.
func (p *Pipeline) OnFrameComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventFrameComplete, handler)
	return err
}

// OnExhausted registers a handler for exhaustion failures.
// Handlers run asynchronously.
func (p *Pipeline) OnExhausted(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventExhausted, handler)
	return err
}

// OnComplete registers a handler for each Dispatch or Process call.
// Handlers run asynchronously.
func (p *Pipeline) OnComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventComplete, handler)
	return err
}

// WithClock sets a custom clock for testing.
func (p *Pipeline) WithClock(clock clockz.Clock) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}

// WithContainer replaces the lookup collaborator.
func (p *Pipeline) WithContainer(container Container) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.container = container
	return p
}

// getClock returns the clock to use.
func (p *Pipeline) getClock() clockz.Clock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

func (p *Pipeline) getContainer() Container {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.container
}
