package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"
)

// Scanner polls the watch directories and submits every eligible file it
// finds. It is the catch-up companion to the fsnotify Watcher: files dropped
// while nothing was running are picked up on the next sweep.
type Scanner struct {
	dirs      []string
	interval  time.Duration
	submitter *Submitter
	skipDirs  map[string]bool
	logger    *slog.Logger
}

func NewScanner(dirs []string, interval time.Duration, submitter *Submitter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		dirs:      dirs,
		interval:  interval,
		submitter: submitter,
		skipDirs: map[string]bool{
			submitter.processedSubdir: true,
			submitter.failedSubdir:    true,
		},
		logger: logger,
	}
}

// Run sweeps immediately and then on every interval tick until ctx ends.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep walks every watch directory once. Submission errors are logged and
// the sweep continues; a transient failure just means retry next tick.
func (s *Scanner) Sweep(ctx context.Context) {
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("walk error", "path", path, "error", err)
				return nil
			}
			if d.IsDir() {
				if path != dir && s.skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := s.submitter.Submit(ctx, path); err != nil {
				s.logger.Warn("submit error", "path", path, "error", err)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("sweep failed", "dir", dir, "error", err)
		}
	}
}
