// Package progress tracks ingestion run state and emits an append-only
// progress log.
package progress

import (
	"context"
	"time"
)

// Stage is a phase of an ingestion run.
type Stage string

const (
	StageInitialized Stage = "initialized"
	StageDiscovering Stage = "discovering"
	StageProcessing  Stage = "processing"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// terminal reports whether no further transitions are allowed.
func (s Stage) terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// LogEntry is one progress emission. Entries are append-only and
// ordered by Seq within a run.
type LogEntry struct {
	Seq            int64
	Timestamp      time.Time
	RunID          string
	Stage          Stage
	Percentage     float64
	FilesProcessed int
	TotalFiles     int
	CurrentFile    string
	Error          string
}

// Store persists progress entries.
type Store interface {
	// Append adds one entry. Seq is assigned by the store.
	Append(ctx context.Context, entry LogEntry) error

	// Entries returns all entries for a run in sequence order.
	Entries(ctx context.Context, runID string) ([]LogEntry, error)

	// Latest returns the newest entry for a run, or nil when the run
	// has no entries.
	Latest(ctx context.Context, runID string) (*LogEntry, error)

	// Close releases resources.
	Close() error
}
