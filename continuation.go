package framez

import "context"

// continuation is the Continuation handed to each unit. It pins the
// position of the frame that received it, so invoking it always resumes
// at the following frame no matter how often or from which goroutine it
// is called.
type continuation struct {
	pipeline *Pipeline
	outer    Continuation
	position int
}

// Invoke resolves the next applicable frame and runs it. When the
// pipeline has no frames left it falls through to the outer continuation,
// or fails with ErrExhausted when there is none.
func (c *continuation) Invoke(ctx context.Context, req Request) (Response, error) {
	p := c.pipeline
	unit, index, err := p.resolve(ctx, req, c.position+1)
	if err != nil {
		return nil, err
	}

	if unit == nil {
		if c.outer != nil {
			p.metrics.Counter(PipelineFallthroughTotal).Inc()
			return c.outer.Invoke(ctx, req)
		}
		return nil, p.exhausted(ctx, req)
	}

	next := &continuation{pipeline: p, position: index, outer: c.outer}
	return p.execute(ctx, req, unit, index, next)
}
