package framez

import (
	"context"
	"fmt"
)

// Parse converts loosely typed frame specs into Frames. It accepts, for each
// spec:
//   - Frame: used as is
//   - UnitRef: an unconditional frame
//   - Unit: Use(unit)
//   - HandlerFunc, or a plain func with the same signature: Func
//   - string: Lookup(name)
//   - []any: a conditional frame, conditions first and the unit last
//
// Inside a conditional frame, conditions may be a bool, a string (path
// shorthand), a Matcher, or a Condition. Anything else fails with
// ErrInvalidCondition. A spec or terminal that is not one of the unit
// forms fails with ErrUnresolvableUnit naming its type.
//
// Parse runs once, at construction; traversal never inspects types.
func Parse(specs ...any) ([]Frame, error) {
	frames := make([]Frame, 0, len(specs))
	for i, spec := range specs {
		frame, err := parseFrame(spec)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func parseFrame(spec any) (Frame, error) {
	switch s := spec.(type) {
	case Frame:
		return s, nil
	case []any:
		if len(s) == 0 {
			return Frame{}, fmt.Errorf("%w (empty conditional frame)", ErrUnresolvableUnit)
		}
		conditions := make([]Condition, 0, len(s)-1)
		for j, c := range s[:len(s)-1] {
			cond, err := parseCondition(c)
			if err != nil {
				return Frame{}, fmt.Errorf("condition %d: %w", j, err)
			}
			conditions = append(conditions, cond)
		}
		ref, err := parseRef(s[len(s)-1])
		if err != nil {
			return Frame{}, err
		}
		return When(ref, conditions...), nil
	default:
		ref, err := parseRef(spec)
		if err != nil {
			return Frame{}, err
		}
		return Always(ref), nil
	}
}

func parseRef(spec any) (UnitRef, error) {
	switch s := spec.(type) {
	case UnitRef:
		if s.kind == refInvalid {
			return UnitRef{}, fmt.Errorf("%w (invalid unit reference)", ErrUnresolvableUnit)
		}
		return s, nil
	case string:
		return Lookup(s), nil
	case Unit:
		return Use(s), nil
	case HandlerFunc:
		if s == nil {
			break
		}
		return Func(fmt.Sprintf("func#%p", s), s), nil
	case func(context.Context, Request, Continuation) (Response, error):
		if s == nil {
			break
		}
		return Func(fmt.Sprintf("func#%p", s), s), nil
	}
	return UnitRef{}, fmt.Errorf("%w (%T)", ErrUnresolvableUnit, spec)
}

func parseCondition(spec any) (Condition, error) {
	switch c := spec.(type) {
	case Condition:
		if c.kind == condInvalid {
			break
		}
		return c, nil
	case bool:
		return Bool(c), nil
	case string:
		return Path(c), nil
	case Matcher:
		return Match(c), nil
	}
	return Condition{}, fmt.Errorf("%w (%T)", ErrInvalidCondition, spec)
}
