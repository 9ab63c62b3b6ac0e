// Package config builds framez pipelines from a YAML document.
//
// A document declares named pipelines, each a list of frames. A frame
// names either a unit, resolved through the registry when traversal
// reaches it, or another pipeline from the same document. Conditions are
// listed under "when":
//
//	entry: main
//	pipelines:
//	  - name: main
//	    frames:
//	      - unit: access-log
//	      - unit: auth
//	        when: ["/api"]
//	      - unit: api
//	        when: [true, "glob:/api/*"]
//	      - pipeline: fallback
//
// Strings are path prefixes (see framez.PathMatcher), strings starting with
// "glob:" are glob patterns, and booleans are literal conditions.
//
// Scalar settings can be overridden from the environment with the FRAMEZ_
// prefix, using "__" for nesting (FRAMEZ_ENTRY=admin).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/zoobzio/framez"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "FRAMEZ_"

// GlobPrefix marks a condition string as a glob pattern.
const GlobPrefix = "glob:"

// PipelinePrefix keeps built pipelines apart from units in the registry,
// so a pipeline and a unit may share a name.
const PipelinePrefix = "pipeline:"

// PipelineKey returns the registry name a built pipeline is stored under.
func PipelineKey(name string) string {
	return PipelinePrefix + name
}

// Config errors.
var (
	ErrNoPipelines       = errors.New("no pipelines configured")
	ErrDuplicatePipeline = errors.New("duplicate pipeline name")
	ErrUnnamedPipeline   = errors.New("pipeline has no name")
	ErrAmbiguousFrame    = errors.New("frame must set exactly one of unit or pipeline")
	ErrUnknownEntry      = errors.New("entry pipeline not configured")
)

// Config is the root of a pipeline document.
type Config struct {
	Entry     string           `koanf:"entry"`
	Pipelines []PipelineConfig `koanf:"pipelines"`
}

// PipelineConfig declares one named pipeline.
type PipelineConfig struct {
	Name   string        `koanf:"name"`
	Frames []FrameConfig `koanf:"frames"`
}

// FrameConfig declares one frame. Exactly one of Unit and Pipeline is set.
type FrameConfig struct {
	Unit     string `koanf:"unit"`
	Pipeline string `koanf:"pipeline"`
	When     []any  `koanf:"when"`
}

// Target returns the name the frame resolves through the registry.
func (f FrameConfig) Target() string {
	if f.Unit != "" {
		return f.Unit
	}
	return f.Pipeline
}

// Load reads the YAML document at path, then applies FRAMEZ_ environment
// overrides. A missing file is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks names and frame targets. Conditions are checked by Build.
func (c *Config) Validate() error {
	if len(c.Pipelines) == 0 {
		return ErrNoPipelines
	}
	seen := make(map[string]bool, len(c.Pipelines))
	for i, p := range c.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("pipeline %d: %w", i, ErrUnnamedPipeline)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicatePipeline, p.Name)
		}
		seen[p.Name] = true
		for j, f := range p.Frames {
			if (f.Unit == "") == (f.Pipeline == "") {
				return fmt.Errorf("pipeline %q frame %d: %w", p.Name, j, ErrAmbiguousFrame)
			}
		}
	}
	if c.Entry != "" && !seen[c.Entry] {
		return fmt.Errorf("%w: %q", ErrUnknownEntry, c.Entry)
	}
	return nil
}

// EntryName returns the configured entry pipeline, or the first one.
func (c *Config) EntryName() string {
	if c.Entry != "" {
		return c.Entry
	}
	if len(c.Pipelines) > 0 {
		return c.Pipelines[0].Name
	}
	return ""
}

// Build creates every configured pipeline with registry as its container
// and registers each one under PipelineKey(name), which is how "pipeline"
// frames find it. A pipeline already registered under that key fails with
// ErrDuplicatePipeline.
//
// Names and conditions are checked before anything is created, and
// nothing is registered until every pipeline is built, so a failed Build
// leaves registry as it was.
func Build(cfg *Config, registry *framez.Registry) (map[string]*framez.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	specs := make([][]framez.Frame, len(cfg.Pipelines))
	for i, pc := range cfg.Pipelines {
		if registry.Has(PipelineKey(pc.Name)) {
			return nil, fmt.Errorf("%w: %q is already registered", ErrDuplicatePipeline, pc.Name)
		}
		frames, err := buildFrames(pc)
		if err != nil {
			return nil, err
		}
		specs[i] = frames
	}

	pipelines := make(map[string]*framez.Pipeline, len(cfg.Pipelines))
	for i, pc := range cfg.Pipelines {
		p, err := framez.NewWithContainer(pc.Name, registry, specs[i]...)
		if err != nil {
			closeAll(pipelines)
			return nil, err
		}
		pipelines[pc.Name] = p
	}

	for name, p := range pipelines {
		registry.Register(PipelineKey(name), p)
	}
	return pipelines, nil
}

func buildFrames(pc PipelineConfig) ([]framez.Frame, error) {
	frames := make([]framez.Frame, 0, len(pc.Frames))
	for j, fc := range pc.Frames {
		conditions, err := Conditions(fc.When)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q frame %d: %w", pc.Name, j, err)
		}
		target := fc.Unit
		if fc.Pipeline != "" {
			target = PipelineKey(fc.Pipeline)
		}
		frames = append(frames, framez.When(framez.Lookup(target), conditions...))
	}
	return frames, nil
}

func closeAll(pipelines map[string]*framez.Pipeline) {
	for _, p := range pipelines {
		_ = p.Close() //nolint:errcheck // best effort on the error path
	}
}

// Conditions converts raw "when" entries into conditions.
func Conditions(raw []any) ([]framez.Condition, error) {
	conditions := make([]framez.Condition, 0, len(raw))
	for i, v := range raw {
		switch c := v.(type) {
		case bool:
			conditions = append(conditions, framez.Bool(c))
		case string:
			if pattern, ok := strings.CutPrefix(c, GlobPrefix); ok {
				conditions = append(conditions, framez.Match(framez.NewPatternMatcher(pattern)))
				continue
			}
			conditions = append(conditions, framez.Path(c))
		default:
			return nil, fmt.Errorf("condition %d: %w (%T)", i, framez.ErrInvalidCondition, v)
		}
	}
	return conditions, nil
}

// Exists reports whether path exists, for callers choosing a default file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
