package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/observability"
	"github.com/your-org/photostack/internal/watch"
)

// The watcher daemon combines fsnotify events with periodic sweeps: events
// give low latency, sweeps pick up whatever happened while it wasn't running.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if len(cfg.Watch.Dirs) == 0 {
		slog.Error("no watch directories configured")
		os.Exit(1)
	}

	index, err := watch.OpenIndex(cfg.Watch.IndexDB)
	if err != nil {
		slog.Error("open watch index", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	submitter := watch.NewSubmitter(cfg.Watch, index, slog.Default())
	scanner := watch.NewScanner(cfg.Watch.Dirs, cfg.Watch.PollInterval, submitter, slog.Default())
	watcher := watch.NewWatcher(cfg.Watch.Dirs, submitter, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down watcher...")
		cancel()
	}()

	go func() {
		if err := scanner.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("scanner stopped", "error", err)
		}
	}()

	slog.Info("watcher started", "dirs", cfg.Watch.Dirs, "api", cfg.Watch.APIBase)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("watcher stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("watcher stopped")
}
