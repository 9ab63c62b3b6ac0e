package framez_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/zoobzio/framez"
)

func ok(context.Context, framez.Request, framez.Continuation) (framez.Response, error) {
	return framez.NewResponse(200, ""), nil
}

func pass(ctx context.Context, req framez.Request, next framez.Continuation) (framez.Response, error) {
	return next.Invoke(ctx, req)
}

// BenchmarkDispatch_SingleFrame measures the overhead of a one-frame pipeline.
func BenchmarkDispatch_SingleFrame(b *testing.B) {
	ctx := context.Background()
	p, _ := framez.New("bench", framez.Always(framez.Func("ok", ok)))
	defer p.Close()
	req := framez.NewRequest("GET", "/")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Dispatch(ctx, req) //nolint:errcheck // benchmark ignores errors
	}
}

// BenchmarkDispatch_Depth measures dispatch through pass-through frames.
func BenchmarkDispatch_Depth(b *testing.B) {
	ctx := context.Background()
	req := framez.NewRequest("GET", "/")

	for _, depth := range []int{1, 5, 20} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			frames := make([]framez.Frame, 0, depth+1)
			for i := 0; i < depth; i++ {
				frames = append(frames, framez.Always(framez.Func(fmt.Sprintf("pass-%d", i), pass)))
			}
			frames = append(frames, framez.Always(framez.Func("ok", ok)))
			p, _ := framez.New("bench", frames...)
			defer p.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = p.Dispatch(ctx, req) //nolint:errcheck // benchmark ignores errors
			}
		})
	}
}

// BenchmarkDispatch_Conditions measures skipping frames by condition type.
func BenchmarkDispatch_Conditions(b *testing.B) {
	ctx := context.Background()
	req := framez.NewRequest("GET", "/public/page")

	conditions := map[string]framez.Condition{
		"bool":    framez.Bool(false),
		"path":    framez.Path("/admin"),
		"pattern": framez.Match(framez.NewPatternMatcher("/admin/*")),
	}
	for name, cond := range conditions {
		b.Run(name, func(b *testing.B) {
			p, _ := framez.New("bench",
				framez.When(framez.Func("skipped", ok), cond),
				framez.Always(framez.Func("ok", ok)),
			)
			defer p.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = p.Dispatch(ctx, req) //nolint:errcheck // benchmark ignores errors
			}
		})
	}
}

// BenchmarkDispatch_Lookup measures resolving units through a Registry.
func BenchmarkDispatch_Lookup(b *testing.B) {
	ctx := context.Background()
	registry := framez.NewRegistry().RegisterFunc("ok", ok)
	p, _ := framez.NewWithContainer("bench", registry, framez.Always(framez.Lookup("ok")))
	defer p.Close()
	req := framez.NewRequest("GET", "/")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Dispatch(ctx, req) //nolint:errcheck // benchmark ignores errors
	}
}

// BenchmarkDispatch_Nested measures falling through a nested pipeline.
func BenchmarkDispatch_Nested(b *testing.B) {
	ctx := context.Background()
	inner, _ := framez.New("inner", framez.Always(framez.Func("pass", pass)))
	defer inner.Close()
	outer, _ := framez.New("outer",
		framez.Always(framez.Use(inner)),
		framez.Always(framez.Func("ok", ok)),
	)
	defer outer.Close()
	req := framez.NewRequest("GET", "/")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = outer.Dispatch(ctx, req) //nolint:errcheck // benchmark ignores errors
	}
}

// BenchmarkDispatch_Parallel measures concurrent dispatch on one pipeline.
func BenchmarkDispatch_Parallel(b *testing.B) {
	p, _ := framez.New("bench",
		framez.Always(framez.Func("pass", pass)),
		framez.Always(framez.Func("ok", ok)),
	)
	defer p.Close()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		req := framez.NewRequest("GET", "/")
		for pb.Next() {
			_, _ = p.Dispatch(ctx, req) //nolint:errcheck // benchmark ignores errors
		}
	})
}
