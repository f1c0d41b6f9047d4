// Command fabricd is the fabric core's process entry point: it parses
// tunables, composes a Runtime, and runs the scheduler's task loop on its
// own goroutine until an interrupt/SIGTERM or a metrics-server error.
//
// Grounded on cuemby-warren/cmd/warren/main.go for the cobra command
// shape (a root command whose RunE does the real work, flags bound with
// cmd.Flags().GetX) and abiolaogu-MinIO/cmd/server/main.go for the
// startup-banner / signal-wait / graceful-shutdown sequence, since
// fabricd — unlike warren — exposes a single process mode rather than a
// cluster of subcommands.
package main

import (
	"context"
	goflag "flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphaharrius/veil-fabric/internal/config"
	"github.com/alphaharrius/veil-fabric/internal/diagnostics"
	"github.com/alphaharrius/veil-fabric/internal/runtime"
	"github.com/alphaharrius/veil-fabric/internal/telemetry"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cfg is bound to the root command's flags in init; FlagSet writes each
// parsed value straight into its fields, so run reads it directly rather
// than threading it through cobra's context.
var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:     "fabricd",
	Short:   "veil-fabric execution core: arenas, heap, scheduler, and worker threads",
	Version: Version,
	RunE:    run,
}

func init() {
	// config.FlagSet speaks the stdlib flag package (no pack example pulls
	// in a config/env library to bridge it directly to pflag), so register
	// onto a goflag.FlagSet and fold that into cobra's pflag set.
	gofs := goflag.NewFlagSet("fabricd", goflag.ContinueOnError)
	cfg.FlagSet(gofs)
	rootCmd.Flags().AddGoFlagSet(gofs)
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf("veil-fabric core v%s\n", Version)
	fmt.Println("===================================")

	if err := telemetry.InitTracing(cfg.JaegerEndpoint); err != nil {
		diagnostics.Warn("tracing disabled: %v", err)
	}

	// runtime.New's failures (HostOutOfMemory, ThreadResource) are
	// operational, not implementation faults, so they return as an error
	// here rather than going through diagnostics.Fatal: main's Execute
	// path turns this into the spec's exit code 1, reserving
	// diagnostics.Fatal's os.Exit(2) for bugs (see internal/diagnostics).
	rt, err := runtime.New(cfg)
	if err != nil {
		return fmt.Errorf("runtime composition failed: %w", err)
	}

	metricsErrCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.Metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			metricsErrCh <- err
		}
	}()
	diagnostics.Banner("metrics endpoint: http://%s/metrics", cfg.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	schedulerDone := make(chan struct{})
	go func() {
		rt.Scheduler.Start()
		close(schedulerDone)
	}()

	select {
	case <-sigCh:
		fmt.Println("\nshutting down...")
		rt.RequestStop()
	case err := <-metricsErrCh:
		diagnostics.Warn("metrics server error: %v", err)
		rt.RequestStop()
	}

	<-schedulerDone
	rt.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetry.ShutdownTracing(shutdownCtx); err != nil {
		diagnostics.Warn("tracing shutdown: %v", err)
	}

	fmt.Println("✓ fabric core stopped")
	return nil
}
