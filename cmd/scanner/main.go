package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/observability"
	"github.com/your-org/photostack/internal/watch"
)

// The scanner is the one-shot ingestion tool: sweep the configured
// directories once, submit everything eligible, exit. Suitable for cron.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	dir := flag.String("dir", "", "scan a single directory instead of the configured ones")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	dirs := cfg.Watch.Dirs
	if *dir != "" {
		dirs = []string{*dir}
	}
	if len(dirs) == 0 {
		slog.Error("no directories to scan")
		os.Exit(1)
	}

	index, err := watch.OpenIndex(cfg.Watch.IndexDB)
	if err != nil {
		slog.Error("open watch index", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	submitter := watch.NewSubmitter(cfg.Watch, index, slog.Default())
	scanner := watch.NewScanner(dirs, cfg.Watch.PollInterval, submitter, slog.Default())

	slog.Info("scanning", "dirs", dirs, "api", cfg.Watch.APIBase)
	scanner.Sweep(context.Background())
	slog.Info("scan complete")
}
