package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteStore persists progress entries so other processes (the
// `progress` command) can query a running or finished ingestion.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the progress log at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS progress_log (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp       TEXT NOT NULL,
		run_id          TEXT NOT NULL,
		stage           TEXT NOT NULL,
		percentage      REAL NOT NULL,
		files_processed INTEGER NOT NULL,
		total_files     INTEGER NOT NULL,
		current_file    TEXT,
		error           TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_progress_run ON progress_log(run_id, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append adds one entry. Seq is assigned by the database.
func (s *SQLiteStore) Append(ctx context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("progress store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_log (
			timestamp, run_id, stage, percentage,
			files_processed, total_files, current_file, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.RunID, string(entry.Stage), entry.Percentage,
		entry.FilesProcessed, entry.TotalFiles, entry.CurrentFile, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to append progress entry: %w", err)
	}
	return nil
}

// Entries returns all entries for a run in sequence order.
func (s *SQLiteStore) Entries(ctx context.Context, runID string) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("progress store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, timestamp, run_id, stage, percentage,
		       files_processed, total_files, current_file, error
		FROM progress_log WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []LogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Latest returns the newest entry for a run, or nil.
func (s *SQLiteStore) Latest(ctx context.Context, runID string) (*LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("progress store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, timestamp, run_id, stage, percentage,
		       files_processed, total_files, current_file, error
		FROM progress_log WHERE run_id = ? ORDER BY seq DESC LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &entry, rows.Err()
}

func scanEntry(rows *sql.Rows) (LogEntry, error) {
	var entry LogEntry
	var ts, stage string
	var currentFile, errMsg sql.NullString
	err := rows.Scan(&entry.Seq, &ts, &entry.RunID, &stage, &entry.Percentage,
		&entry.FilesProcessed, &entry.TotalFiles, &currentFile, &errMsg)
	if err != nil {
		return LogEntry{}, fmt.Errorf("failed to scan progress entry: %w", err)
	}

	entry.Stage = Stage(stage)
	entry.CurrentFile = currentFile.String
	entry.Error = errMsg.String
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		entry.Timestamp = parsed
	}
	return entry, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
