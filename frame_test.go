package framez

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUnitRef(t *testing.T) {
	t.Run("Use", func(t *testing.T) {
		unit := Adapt("adapted", func(context.Context, Request, Continuation) (Response, error) {
			return NewResponse(200, ""), nil
		})
		ref := Use(unit)
		if ref.Name() != "adapted" {
			t.Errorf("expected name from unit, got %q", ref.Name())
		}
		if ref.IsLookup() {
			t.Error("direct reference reported as lookup")
		}
		if ref.String() != "unit(adapted)" {
			t.Errorf("unexpected string %q", ref.String())
		}
	})

	t.Run("Use Nil Is Invalid", func(t *testing.T) {
		if Use(nil).String() != "invalid" {
			t.Error("expected nil unit to produce an invalid reference")
		}
	})

	t.Run("Lookup", func(t *testing.T) {
		ref := Lookup("auth")
		if !ref.IsLookup() || ref.Name() != "auth" || ref.String() != "lookup(auth)" {
			t.Errorf("unexpected lookup reference %v", ref)
		}
	})

	t.Run("Func Nil Is Invalid", func(t *testing.T) {
		if Func("nil", nil).String() != "invalid" {
			t.Error("expected nil function to produce an invalid reference")
		}
	})
}

func TestFrame(t *testing.T) {
	t.Run("Always Is Unconditional", func(t *testing.T) {
		f := Always(Lookup("a"))
		if f.Conditional() {
			t.Error("expected unconditional frame")
		}
		if f.Ref().Name() != "a" {
			t.Errorf("unexpected ref %v", f.Ref())
		}
	})

	t.Run("When Copies Conditions", func(t *testing.T) {
		conds := []Condition{Bool(true), Path("/x")}
		f := When(Lookup("a"), conds...)
		conds[0] = Bool(false)

		got := f.Conditions()
		if len(got) != 2 || got[0].String() != "true" || got[1].String() != "/x" {
			t.Errorf("unexpected conditions %v", got)
		}
		got[1] = Bool(false)
		if f.Conditions()[1].String() != "/x" {
			t.Error("expected Conditions to return a copy")
		}
	})

	t.Run("Zero Condition Invalid", func(t *testing.T) {
		err := When(Lookup("a"), Bool(true), Condition{}).validate()
		if !errors.Is(err, ErrInvalidCondition) {
			t.Fatalf("expected ErrInvalidCondition, got %v", err)
		}
		if !strings.Contains(err.Error(), "condition 1") {
			t.Errorf("expected error to name the condition, got %v", err)
		}
	})
}

// namedUnit is a Unit that reports a fixed name.
type namedUnit struct{ name Name }

func (u namedUnit) Process(context.Context, Request, Continuation) (Response, error) {
	return NewResponse(200, u.name), nil
}

func (u namedUnit) Name() Name { return u.name }

func TestParse(t *testing.T) {
	handler := func(context.Context, Request, Continuation) (Response, error) {
		return NewResponse(200, "fn"), nil
	}

	t.Run("Bare Units", func(t *testing.T) {
		frames, err := Parse(
			namedUnit{name: "direct"},
			"looked-up",
			HandlerFunc(handler),
			handler,
			Func("explicit", handler),
			Always(Lookup("frame")),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 6 {
			t.Fatalf("expected 6 frames, got %d", len(frames))
		}
		for i, f := range frames {
			if f.Conditional() {
				t.Errorf("frame %d: expected unconditional", i)
			}
		}
		if frames[0].Ref().String() != "unit(direct)" {
			t.Errorf("unexpected ref %v", frames[0].Ref())
		}
		if !frames[1].Ref().IsLookup() || frames[1].Ref().Name() != "looked-up" {
			t.Errorf("expected string to become a lookup, got %v", frames[1].Ref())
		}
		if !strings.HasPrefix(frames[2].Ref().Name(), "func#") || !strings.HasPrefix(frames[3].Ref().Name(), "func#") {
			t.Errorf("expected generated function names, got %q and %q", frames[2].Ref().Name(), frames[3].Ref().Name())
		}
		if frames[4].Ref().Name() != "explicit" {
			t.Errorf("unexpected ref %v", frames[4].Ref())
		}
	})

	t.Run("Conditional Frames", func(t *testing.T) {
		frames, err := Parse(
			[]any{true, "/api", MatcherFunc(func(Request) bool { return true }), Bool(true), "handler"},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		f := frames[0]
		if len(f.Conditions()) != 4 {
			t.Fatalf("expected 4 conditions, got %d", len(f.Conditions()))
		}
		if f.Ref().Name() != "handler" {
			t.Errorf("expected terminal to become the unit, got %v", f.Ref())
		}
	})

	t.Run("Invalid Condition", func(t *testing.T) {
		_, err := Parse("ok", []any{42, "handler"})
		if !errors.Is(err, ErrInvalidCondition) {
			t.Fatalf("expected ErrInvalidCondition, got %v", err)
		}
		if !strings.Contains(err.Error(), "frame 1") || !strings.Contains(err.Error(), "int") {
			t.Errorf("expected error to name frame and type, got %v", err)
		}
	})

	t.Run("Unresolvable Unit", func(t *testing.T) {
		tests := []struct {
			name string
			spec any
		}{
			{"number", 3.14},
			{"empty conditional", []any{}},
			{"bad terminal", []any{true, 42}},
			{"zero ref", UnitRef{}},
			{"nil handler", HandlerFunc(nil)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Parse(tt.spec)
				if !errors.Is(err, ErrUnresolvableUnit) {
					t.Errorf("expected ErrUnresolvableUnit, got %v", err)
				}
			})
		}
	})

	t.Run("Equivalent To Typed Construction", func(t *testing.T) {
		ctx := context.Background()
		p, err := Compose("loose", nil,
			[]any{false, namedUnit{name: "skipped"}},
			[]any{"/api", namedUnit{name: "api"}},
			namedUnit{name: "fallback"},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		for path, want := range map[string]string{"/api/v1": "api", "/web": "fallback"} {
			res, err := p.Dispatch(ctx, NewRequest("GET", path))
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", path, err)
			}
			if body := res.(*BasicResponse).Body; body != want {
				t.Errorf("%s: expected %q, got %q", path, want, body)
			}
		}
	})

	t.Run("Compose Reports Parse Errors", func(t *testing.T) {
		_, err := Compose("broken", nil, 42)
		var frameErr *Error
		if !errors.As(err, &frameErr) || !errors.Is(err, ErrUnresolvableUnit) {
			t.Fatalf("expected *Error wrapping ErrUnresolvableUnit, got %v", err)
		}
	})

	t.Run("Compose Empty", func(t *testing.T) {
		if _, err := Compose("empty", nil); !errors.Is(err, ErrEmptyPipeline) {
			t.Fatalf("expected ErrEmptyPipeline, got %v", err)
		}
	})
}
