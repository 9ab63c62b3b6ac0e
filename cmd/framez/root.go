package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/zoobzio/framez"
	"github.com/zoobzio/framez/config"
)

const defaultConfigFile = "framez.yaml"

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
	noColor    bool
}

type runOptions struct {
	pipeline string
	method   string
	path     string
	token    string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "framez",
		Short:         "Dispatch requests through configured frame pipelines",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.envFile == "" || !config.Exists(opts.envFile) {
				return nil
			}
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("loading %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", defaultConfigFile, "Path to the pipeline document")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored log output")

	root.AddCommand(newRunCmd(opts), newDescribeCmd(opts))
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	run := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch one request through a pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.noColor)
			if err != nil {
				return err
			}

			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}

			registry := demoRegistry(logger, run.timeout)
			pipelines, err := config.Build(cfg, registry)
			if err != nil {
				return err
			}
			defer func() {
				for _, p := range pipelines {
					_ = p.Close()
				}
			}()

			name := run.pipeline
			if name == "" {
				name = cfg.EntryName()
			}
			p, ok := pipelines[name]
			if !ok {
				return fmt.Errorf("%w: %q", config.ErrUnknownEntry, name)
			}
			observe(p, logger)

			req := framez.NewRequest(run.method, run.path)
			if run.token != "" {
				req = req.WithAttribute(tokenAttribute, run.token)
			}

			res, err := p.Dispatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResponse(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&run.pipeline, "pipeline", "p", "", "Pipeline to dispatch through (defaults to the entry pipeline)")
	cmd.Flags().StringVarP(&run.method, "method", "X", "GET", "Request method")
	cmd.Flags().StringVar(&run.path, "path", "/", "Request path")
	cmd.Flags().StringVar(&run.token, "token", "", "Bearer token checked by the auth unit")
	cmd.Flags().DurationVar(&run.timeout, "timeout", 5*time.Second, "Deadline applied by the deadline unit")
	return cmd
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the frames of every configured pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if err := describe(cmd.OutOrStdout(), cfg); err != nil {
				return fmt.Errorf("rendering pipelines: %w", err)
			}
			return nil
		},
	}
}

func describe(w io.Writer, cfg *config.Config) error {
	entry := cfg.EntryName()
	header := []string{"Pipeline", "Frame", "Kind", "Target", "When"}
	var rows [][]string
	for _, p := range cfg.Pipelines {
		name := p.Name
		if name == entry {
			name += " (entry)"
		}
		for i, f := range p.Frames {
			kind := "unit"
			if f.Pipeline != "" {
				kind = "pipeline"
			}
			conds := make([]string, len(f.When))
			for j, c := range f.When {
				conds[j] = fmt.Sprint(c)
			}
			rows = append(rows, []string{name, strconv.Itoa(i), kind, f.Target(), strings.Join(conds, " ")})
		}
	}
	return renderTable(header, rows, w)
}

func printResponse(w io.Writer, res framez.Response) {
	fmt.Fprintf(w, "%d\n", res.StatusCode())
	if r, ok := res.(*framez.BasicResponse); ok && r.Body != "" {
		fmt.Fprintln(w, r.Body)
	}
}

func newLogger(w io.Writer, level string, noColor bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		NoColor:    noColor,
		TimeFormat: "2006-01-02 15:04:05.000",
	})), nil
}

// observe bridges pipeline hook events to the logger.
func observe(p *framez.Pipeline, logger *slog.Logger) {
	_ = p.OnFrameSkipped(func(ctx context.Context, e framez.PipelineEvent) error {
		logger.DebugContext(ctx, "frame skipped",
			slog.String("pipeline", e.Name),
			slog.Int("frame", e.FrameIndex),
			slog.String("unit", e.UnitName),
			slog.String("path", e.Path),
		)
		return nil
	})
	_ = p.OnExhausted(func(ctx context.Context, e framez.PipelineEvent) error {
		logger.WarnContext(ctx, "pipeline exhausted",
			slog.String("pipeline", e.Name),
			slog.String("path", e.Path),
		)
		return nil
	})
}
