// Package cli provides the nemsgen command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flexinfer/nemsgen/internal/config"
	"github.com/flexinfer/nemsgen/internal/manifest"
	"github.com/flexinfer/nemsgen/internal/metrics"
	"github.com/flexinfer/nemsgen/internal/registry"
	"github.com/flexinfer/nemsgen/internal/tracing"
	"github.com/flexinfer/nemsgen/pkg/nems"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// app carries the state shared by all subcommands of one invocation.
type app struct {
	envFiles    []string
	logLevel    string
	logFormat   string
	metricsFile string

	cfg     *config.Config
	logger  *slog.Logger
	catalog registry.Catalog
	tracer  *tracing.Provider
}

func newApp() *app {
	return &app{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		catalog: registry.NewMemoryRegistryWithDefaults(),
	}
}

// root builds the command tree.
func (a *app) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nemsgen",
		Short: "Generate NEMS/NUOPC coupling configuration files.",
		Long: `nemsgen builds a coupled modeling system from a JSON or HCL manifest and ` +
			`renders the nems.configure, config.rc and model_configure files that the ` +
			`NEMS coupler reads.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "load environment variables from these files")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")

	cmd.AddCommand(
		a.renderCmd(),
		a.writeCmd(),
		a.validateCmd(),
		a.modelsCmd(),
		a.versionCmd(),
	)
	return cmd
}

// setup loads configuration, installs the logger and starts tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if a.metricsFile != "" {
		cfg.MetricsFile = a.metricsFile
	}
	a.cfg = cfg

	a.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(a.logger)

	a.tracer, err = tracing.Init(cmd.Context(), &tracing.Config{
		ServiceName:    "nemsgen",
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.TracingEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	return nil
}

// close flushes traces and writes the metrics textfile.
func (a *app) close(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}
	if a.cfg != nil && a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Error("failed to write metrics", "error", err)
		}
	}
	if err := a.catalog.Close(); err != nil {
		a.logger.Warn("catalog close failed", "error", err)
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// build loads the manifest at path and builds its modeling system. A system
// whose checks fail is returned along with the error.
func (a *app) build(ctx context.Context, path string) (*nems.ModelingSystem, error) {
	m, err := manifest.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	sys, err := manifest.Build(ctx, m, a.catalog, a.logger)
	if err != nil && !errors.Is(err, manifest.ErrChecksFailed) {
		return nil, fmt.Errorf("build %s: %w", path, err)
	}
	return sys, err
}

// Execute runs the nemsgen command and exits non-zero on failure.
func Execute(ctx context.Context) {
	a := newApp()
	cmd := a.root()
	err := cmd.ExecuteContext(ctx)
	a.close(context.WithoutCancel(ctx))
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}
