package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"indexwatch/internal/api"
	"indexwatch/internal/checker"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled checker",
		Long: `Run the HTTP API. When CHECK_INTERVAL is positive, today's run is also
executed at start-up and then on every interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(parent context.Context, opts *RootOptions) error {
	// Create a context that is canceled on OS signals like SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("initializing storage...")
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Printf("%s storage ready", a.cfg.DatabaseDriver)

	scheduler := checker.New(a.svc, a.cfg.CheckInterval)
	server := api.NewServer(a.cfg.HTTPPort, api.NewRouter(a.store, a.svc, a.hub))

	scheduler.Start()
	serveErr := server.Start()

	log.Println("application is running...")

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received, starting graceful shutdown...")
	case err := <-serveErr:
		scheduler.Stop()
		return WrapExitError(ExitCommandError, "could not start HTTP server", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer shutdownCancel()

	// Stop the scheduler first so no new run starts during shutdown.
	scheduler.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}
	log.Println("application shut down gracefully")
	return nil
}
