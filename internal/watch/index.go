package watch

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Index is the local dedup ledger for discovery front ends. It remembers
// which files were already submitted so restarts and repeated scans don't
// re-upload unchanged content. The server dedups by content hash anyway; the
// index just avoids the network round trip.
type Index struct {
	db *sql.DB
}

func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		mtime INTEGER NOT NULL,
		hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		submitted_at TIMESTAMP NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

// NeedsSubmit reports whether the file at path changed since its last
// successful submission. Unknown paths and modified files need submitting.
func (i *Index) NeedsSubmit(path string, mtime int64) (bool, error) {
	var storedMtime int64
	var outcome string
	err := i.db.QueryRow(
		`SELECT mtime, outcome FROM files WHERE path = ?`, path,
	).Scan(&storedMtime, &outcome)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("query index: %w", err)
	}
	return storedMtime != mtime || outcome != "ok", nil
}

// Record stores the submission outcome for a file version.
func (i *Index) Record(path string, mtime int64, hash, outcome string) error {
	_, err := i.db.Exec(
		`INSERT INTO files (path, mtime, hash, outcome, submitted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			hash = excluded.hash,
			outcome = excluded.outcome,
			submitted_at = excluded.submitted_at`,
		path, mtime, hash, outcome, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}
