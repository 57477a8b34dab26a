package watch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/observability"
)

// Submitter uploads discovered files to the ingestion API and relocates them
// into processed/ or failed/ next to where they were found.
type Submitter struct {
	client          *http.Client
	index           *Index
	apiBase         string
	apiKey          string
	processedSubdir string
	failedSubdir    string
	extensions      map[string]bool
	logger          *slog.Logger
}

func NewSubmitter(cfg config.WatchConfig, index *Index, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Submitter{
		client:          &http.Client{Timeout: 5 * time.Minute},
		index:           index,
		apiBase:         strings.TrimRight(cfg.APIBase, "/"),
		apiKey:          cfg.APIKey,
		processedSubdir: cfg.ProcessedSubdir,
		failedSubdir:    cfg.FailedSubdir,
		extensions:      exts,
		logger:          logger,
	}
}

// Eligible reports whether path looks like an image this pipeline handles.
func (s *Submitter) Eligible(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// Submit uploads one file if its current version wasn't submitted before.
// The file moves to the processed subdir on success and the failed subdir
// when the server rejects it; transient transport errors leave it in place
// for the next scan.
func (s *Submitter) Submit(ctx context.Context, path string) error {
	if !s.Eligible(path) {
		return nil
	}

	info, err := waitStable(ctx, path)
	if err != nil {
		return err
	}

	mtime := info.ModTime().UnixNano()
	needed, err := s.index.NeedsSubmit(path, mtime)
	if err != nil {
		return err
	}
	if !needed {
		observability.WatchSubmissions.WithLabelValues("skipped").Inc()
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	hash := models.ContentHash(raw)

	status, err := s.upload(ctx, filepath.Base(path), raw)
	if err != nil {
		observability.WatchSubmissions.WithLabelValues("failed").Inc()
		s.logger.Warn("submit failed, leaving file for retry", "path", path, "error", err)
		return err
	}

	if status >= 200 && status < 300 {
		observability.WatchSubmissions.WithLabelValues("ok").Inc()
		if err := s.index.Record(path, mtime, hash, "ok"); err != nil {
			s.logger.Warn("record submission failed", "path", path, "error", err)
		}
		s.relocate(path, s.processedSubdir)
		s.logger.Info("file submitted", "path", path)
		return nil
	}

	// Server accepted the request but rejected the file, retrying won't help.
	observability.WatchSubmissions.WithLabelValues("failed").Inc()
	if err := s.index.Record(path, mtime, hash, "rejected"); err != nil {
		s.logger.Warn("record submission failed", "path", path, "error", err)
	}
	s.relocate(path, s.failedSubdir)
	return fmt.Errorf("server rejected %s: status %d", path, status)
}

func (s *Submitter) upload(ctx context.Context, filename string, raw []byte) (int, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return 0, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return 0, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/v1/images", &body)
	if err != nil {
		return 0, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// relocate moves a file into a sibling subdir, suffixing the name when the
// destination already exists. Best-effort: a failed move only logs.
func (s *Submitter) relocate(path, subdir string) {
	destDir := filepath.Join(filepath.Dir(path), subdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.logger.Warn("create relocation dir failed", "dir", destDir, "error", err)
		return
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = strings.TrimSuffix(dest, ext) + "_" + time.Now().UTC().Format("20060102T150405") + ext
	}

	if err := os.Rename(path, dest); err != nil {
		s.logger.Warn("relocate failed", "path", path, "dest", dest, "error", err)
	}
}

// waitStable waits until the file size stops changing, so partially copied
// files aren't uploaded mid-write.
func waitStable(ctx context.Context, path string) (os.FileInfo, error) {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.Size() == lastSize {
			return info, nil
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}
