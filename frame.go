package framez

import "fmt"

type refKind uint8

const (
	refInvalid refKind = iota
	refDirect
	refLookup
	refFunc
)

// UnitRef names the unit a frame runs. It is one of:
//   - Use(unit): a unit instance supplied directly
//   - Lookup(name): a name resolved through the Container on every traversal
//   - Func(name, fn): a bare function adapted to the Unit contract
//
// The zero UnitRef is invalid and is rejected by New.
type UnitRef struct {
	unit Unit
	fn   HandlerFunc
	name Name
	kind refKind
}

// Use references a unit instance directly.
func Use(unit Unit) UnitRef {
	if unit == nil {
		return UnitRef{}
	}
	return UnitRef{kind: refDirect, unit: unit, name: unitName(unit)}
}

// Lookup references a unit by name. The name is resolved through the
// pipeline's Container when traversal reaches the frame, not before.
func Lookup(name Name) UnitRef {
	return UnitRef{kind: refLookup, name: name}
}

// Func references a bare function. The function is adapted so that a nil
// response with a nil error fails with ErrInvalidResponse.
func Func(name Name, fn HandlerFunc) UnitRef {
	if fn == nil {
		return UnitRef{}
	}
	return UnitRef{kind: refFunc, fn: fn, name: name}
}

// Name returns the reference's display name.
func (r UnitRef) Name() Name {
	return r.name
}

// IsLookup reports whether the reference resolves through a Container.
func (r UnitRef) IsLookup() bool {
	return r.kind == refLookup
}

// String describes the reference for diagnostics.
func (r UnitRef) String() string {
	switch r.kind {
	case refDirect:
		return "unit(" + r.name + ")"
	case refLookup:
		return "lookup(" + r.name + ")"
	case refFunc:
		return "func(" + r.name + ")"
	default:
		return "invalid"
	}
}

type condKind uint8

const (
	condInvalid condKind = iota
	condBool
	condMatcher
)

// Condition gates a conditional frame. It is one of:
//   - Bool(b): true always passes, false always skips the frame
//   - Path(pattern): sugar for the built-in path matcher
//   - Match(m): passes when m.Match(req) is true
type Condition struct {
	matcher Matcher
	label   string
	kind    condKind
	value   bool
}

// Bool is a literal condition.
func Bool(b bool) Condition {
	return Condition{kind: condBool, value: b, label: fmt.Sprintf("%t", b)}
}

// Path is the string shorthand for NewPathMatcher(pattern).
func Path(pattern string) Condition {
	return Condition{kind: condMatcher, matcher: NewPathMatcher(pattern), label: pattern}
}

// Match wraps any Matcher as a condition.
func Match(m Matcher) Condition {
	if m == nil {
		return Condition{}
	}
	return Condition{kind: condMatcher, matcher: m, label: fmt.Sprintf("%T", m)}
}

// String describes the condition for diagnostics.
func (c Condition) String() string {
	if c.kind == condInvalid {
		return "invalid"
	}
	return c.label
}

// passes evaluates the condition against req.
func (c Condition) passes(req Request) bool {
	if c.kind == condBool {
		return c.value
	}
	return c.matcher.Match(req)
}

// Frame is one entry of a pipeline's sequence: a unit reference with an
// optional ordered list of conditions. Frames are immutable.
type Frame struct {
	conditions []Condition
	ref        UnitRef
}

// Always creates an unconditional frame.
func Always(ref UnitRef) Frame {
	return Frame{ref: ref}
}

// When creates a conditional frame. Conditions are evaluated in order;
// the first one that fails skips the whole frame.
func When(ref UnitRef, conditions ...Condition) Frame {
	return Frame{ref: ref, conditions: append([]Condition(nil), conditions...)}
}

// Ref returns the frame's unit reference.
func (f Frame) Ref() UnitRef {
	return f.ref
}

// Conditions returns a copy of the frame's conditions.
func (f Frame) Conditions() []Condition {
	return append([]Condition(nil), f.conditions...)
}

// Conditional reports whether the frame has any conditions.
func (f Frame) Conditional() bool {
	return len(f.conditions) > 0
}

// validate checks the frame is well formed.
func (f Frame) validate() error {
	for i, c := range f.conditions {
		if c.kind == condInvalid {
			return fmt.Errorf("%w (condition %d)", ErrInvalidCondition, i)
		}
	}
	if f.ref.kind == refInvalid {
		return fmt.Errorf("%w (invalid unit reference)", ErrUnresolvableUnit)
	}
	return nil
}

// unitName returns the name reported by u, or its type.
func unitName(u any) Name {
	if n, ok := u.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", u)
}
