package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"indexwatch/internal/checker"
	"indexwatch/internal/config"
	"indexwatch/internal/progress"
	"indexwatch/internal/report"
	"indexwatch/internal/storage"
	"indexwatch/internal/storage/postgres"
	"indexwatch/internal/storage/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the indexwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "indexwatch",
		Short:         "Monitor search-index exposure of a list of URLs",
		Long:          "Probes monitored URLs for the index marker and PDF status, stores one run per date and reports what changed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "indexwatch.yaml", "YAML config file; environment variables override it")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewChangelogCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

// app is the set of components every command builds from the config.
type app struct {
	cfg   *config.Config
	store storage.Storer
	hub   *progress.Hub
	svc   *checker.Service
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	prober := checker.NewProber(
		checker.WithTimeout(cfg.ProbeTimeout),
		checker.WithMarker(cfg.ExposureMarker),
		checker.WithUserAgent(cfg.UserAgent),
	)
	hub := progress.NewHub()
	return &app{
		cfg:   cfg,
		store: store,
		hub:   hub,
		svc:   checker.NewService(store, prober, cfg.Concurrency, loc, hub),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

func newReporter(a *app) *report.Reporter { return report.New(a.store) }

func openStore(ctx context.Context, cfg *config.Config) (storage.Storer, error) {
	if cfg.DatabaseDriver == "postgres" {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}
