package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reacts to filesystem events in the watch directories and submits
// new files as they appear. Pair it with a Scanner for catch-up after
// downtime; fsnotify only sees what happens while it's running.
type Watcher struct {
	dirs      []string
	submitter *Submitter
	logger    *slog.Logger
}

func NewWatcher(dirs []string, submitter *Submitter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dirs: dirs, submitter: submitter, logger: logger}
}

// Run blocks handling filesystem events until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Info("watching directory", "dir", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.submitter.Eligible(event.Name) {
				continue
			}
			// Submit waits for the file to stop growing before uploading.
			if err := w.submitter.Submit(ctx, event.Name); err != nil {
				w.logger.Warn("submit error", "path", event.Name, "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
