// Command hbwatch watches a directory tree for suffix-marked video files and
// batch-transcodes them with HandBrakeCLI, publishing progress state for an
// external monitor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hbwatch/hbwatch/internal/check"
	"github.com/hbwatch/hbwatch/internal/config"
	"github.com/hbwatch/hbwatch/internal/logging"
	"github.com/hbwatch/hbwatch/internal/metrics"
	"github.com/hbwatch/hbwatch/internal/state"
	"github.com/hbwatch/hbwatch/internal/watcher"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. The run log doesn't exist yet, so errors go
	// straight to stderr.
	cfg := config.Default()
	if err := config.ParseOSArgs(&cfg, version); err != nil {
		fmt.Fprintf(os.Stderr, "hbwatch: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil && !cfg.CheckOnly {
		fmt.Fprintf(os.Stderr, "hbwatch: %v\n", err)
		return 1
	}

	start := time.Now()
	runLog, err := logging.New(cfg.LogDir, start, os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hbwatch: %v\n", err)
		return 1
	}
	defer runLog.Close()
	log := runLog.Logger

	log.Info().Str("version", version).Str("log", runLog.Path).Msg("hbwatch starting")

	// Phase 2: Startup preconditions. Both external programs must resolve
	// before the watch loop begins; failure here is fatal.
	if err := check.Deps(&cfg, log); err != nil {
		log.Error().Err(err).Msg("startup check failed")
		return 1
	}
	if cfg.CheckOnly {
		log.Info().Msg("checks passed")
		return 0
	}

	watchDir, err := filepath.Abs(cfg.WatchDir)
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.WatchDir).Msg("cannot resolve watch directory")
		return 1
	}
	if info, err := os.Stat(watchDir); err != nil || !info.IsDir() {
		log.Error().Str("dir", watchDir).Msg("watch directory does not exist")
		return 1
	}
	cfg.WatchDir = watchDir

	store, err := state.Open(cfg.StateDir)
	if err != nil {
		log.Error().Err(err).Msg("cannot open state store")
		return 1
	}
	log.Info().Str("dir", store.Dir()).Msg("monitor state directory ready")

	// Phase 3: Signal handling. SIGINT/SIGTERM cancels the context; the
	// loop drains (in-flight encode finishes) rather than dying mid-file.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Phase 4: Run the loop, plus the optional metrics listener.
	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr) })
	}
	g.Go(func() error {
		return watcher.New(&cfg, log, store, nil, nil).Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}
	log.Info().Msg("hbwatch stopped")
	return 0
}
