package memstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/codemem/repoingest/internal/embed"
	ierr "github.com/codemem/repoingest/internal/errors"
)

// SQLiteStore is a local durable memory store. It makes the pipeline
// usable without the remote memory service.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	closed bool
}

// Verify interface implementation at compile time
var _ Client = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the store at path.
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

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite;
	// DSN params may be ignored
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS memories (
		run_id          TEXT NOT NULL,
		tier            TEXT NOT NULL,
		kind            TEXT NOT NULL,
		name            TEXT NOT NULL,
		qualified_name  TEXT NOT NULL,
		file_path       TEXT NOT NULL,
		start_line      INTEGER NOT NULL,
		end_line        INTEGER NOT NULL,
		complexity      INTEGER NOT NULL,
		dependencies    TEXT,
		decorators      TEXT,
		tags            TEXT,
		content_hash    TEXT NOT NULL,
		content         TEXT NOT NULL,
		embedding       BLOB,
		embedding_model TEXT,
		created_at      TEXT NOT NULL,
		PRIMARY KEY (file_path, qualified_name)
	);

	CREATE INDEX IF NOT EXISTS idx_memories_run ON memories(run_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Store upserts one record, keyed by (file_path, qualified_name) so
// re-ingesting a repository replaces stale memories in place.
func (s *SQLiteStore) Store(ctx context.Context, rec ElementRecord, vec *embed.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ierr.StoreError("store is closed", nil)
	}

	deps, err := json.Marshal(rec.Dependencies)
	if err != nil {
		return ierr.StoreError("failed to encode dependencies", err)
	}
	decs, err := json.Marshal(rec.Decorators)
	if err != nil {
		return ierr.StoreError("failed to encode decorators", err)
	}
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return ierr.StoreError("failed to encode tags", err)
	}

	var embedding []byte
	var model sql.NullString
	if vec != nil {
		embedding = encodeVector(vec.Values)
		model = sql.NullString{String: vec.Model, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories (
			run_id, tier, kind, name, qualified_name, file_path,
			start_line, end_line, complexity,
			dependencies, decorators, tags,
			content_hash, content, embedding, embedding_model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, string(rec.Tier), rec.Kind, rec.Name, rec.QualifiedName, rec.FilePath,
		rec.StartLine, rec.EndLine, rec.Complexity,
		string(deps), string(decs), string(tags),
		rec.ContentHash, rec.Content, embedding, model,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return ierr.StoreError("failed to write record", err).
			WithDetail("qualified_name", rec.QualifiedName)
	}

	return nil
}

// Health verifies the database answers a trivial query.
func (s *SQLiteStore) Health(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

// CountByRun returns how many memories a run wrote.
func (s *SQLiteStore) CountByRun(ctx context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ierr.StoreError("store is closed", nil)
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memories WHERE run_id = ?", runID).Scan(&count)
	if err != nil {
		return 0, ierr.StoreError("failed to count records", err)
	}
	return count, nil
}

// Get loads one record by its natural key. The vector is returned when
// one was stored.
func (s *SQLiteStore) Get(ctx context.Context, filePath, qualifiedName string) (*ElementRecord, *embed.Vector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ierr.StoreError("store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, tier, kind, name, qualified_name, file_path,
		       start_line, end_line, complexity,
		       dependencies, decorators, tags,
		       content_hash, content, embedding, embedding_model
		FROM memories WHERE file_path = ? AND qualified_name = ?`,
		filePath, qualifiedName)

	var rec ElementRecord
	var tier, deps, decs, tags string
	var embedding []byte
	var model sql.NullString
	err := row.Scan(&rec.RunID, &tier, &rec.Kind, &rec.Name, &rec.QualifiedName, &rec.FilePath,
		&rec.StartLine, &rec.EndLine, &rec.Complexity,
		&deps, &decs, &tags,
		&rec.ContentHash, &rec.Content, &embedding, &model)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, ierr.StoreError("failed to read record", err)
	}

	rec.Tier = Tier(tier)
	if err := json.Unmarshal([]byte(deps), &rec.Dependencies); err != nil {
		return nil, nil, ierr.StoreError("failed to decode dependencies", err)
	}
	if err := json.Unmarshal([]byte(decs), &rec.Decorators); err != nil {
		return nil, nil, ierr.StoreError("failed to decode decorators", err)
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, nil, ierr.StoreError("failed to decode tags", err)
	}

	var vec *embed.Vector
	if len(embedding) > 0 {
		vec = &embed.Vector{
			Values: decodeVector(embedding),
			Model:  model.String,
		}
	}

	return &rec, vec, nil
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

// encodeVector packs float32 values as little-endian bytes.
func encodeVector(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	values := make([]float32, len(buf)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return values
}
