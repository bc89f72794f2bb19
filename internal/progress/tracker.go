package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ierr "github.com/codemem/repoingest/internal/errors"
)

// Stride defaults: emit at least every N files or every P percent,
// whichever comes first.
const (
	DefaultFileStride    = 10
	DefaultPercentStride = 5.0
)

// Options tunes emission frequency during the processing stage.
type Options struct {
	FileStride    int
	PercentStride float64
}

// Tracker drives the run state machine and writes progress entries.
// Safe for concurrent FileDone calls from worker goroutines.
type Tracker struct {
	store  Store
	logger *slog.Logger
	runID  string
	opts   Options

	mu              sync.Mutex
	stage           Stage
	total           int
	processed       int
	lastEmittedFile int
	lastEmittedPct  float64
}

// NewTracker creates a tracker in the Initialized stage and emits the
// initial entry.
func NewTracker(ctx context.Context, store Store, logger *slog.Logger, runID string, opts Options) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("progress store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FileStride <= 0 {
		opts.FileStride = DefaultFileStride
	}
	if opts.PercentStride <= 0 {
		opts.PercentStride = DefaultPercentStride
	}

	t := &Tracker{
		store:  store,
		logger: logger,
		runID:  runID,
		opts:   opts,
		stage:  StageInitialized,
	}
	if err := t.emitLocked(ctx, "", ""); err != nil {
		return nil, err
	}
	return t, nil
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// StartDiscovery transitions Initialized -> Discovering.
func (t *Tracker) StartDiscovery(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StageDiscovering, StageInitialized); err != nil {
		return err
	}
	return t.emitLocked(ctx, "", "")
}

// StartProcessing transitions Discovering -> Processing with the file
// total discovery produced. A zero total reports 100% immediately.
func (t *Tracker) StartProcessing(ctx context.Context, totalFiles int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StageProcessing, StageDiscovering); err != nil {
		return err
	}
	t.total = totalFiles
	return t.emitLocked(ctx, "", "")
}

// FileDone records one processed file and emits when the configured
// file or percentage stride is crossed, or on the final file.
func (t *Tracker) FileDone(ctx context.Context, currentFile string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage != StageProcessing {
		return ierr.InternalError(
			fmt.Sprintf("file completion reported in stage %s", t.stage), nil)
	}

	t.processed++
	pct := t.percentageLocked()

	crossedFiles := t.processed-t.lastEmittedFile >= t.opts.FileStride
	crossedPct := pct-t.lastEmittedPct >= t.opts.PercentStride
	final := t.total > 0 && t.processed >= t.total
	if !crossedFiles && !crossedPct && !final {
		return nil
	}

	t.lastEmittedFile = t.processed
	t.lastEmittedPct = pct
	return t.emitLocked(ctx, currentFile, "")
}

// Complete transitions Processing -> Completed.
func (t *Tracker) Complete(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StageCompleted, StageProcessing); err != nil {
		return err
	}
	return t.emitLocked(ctx, "", "")
}

// Fail transitions to Failed from any non-terminal stage.
func (t *Tracker) Fail(ctx context.Context, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.terminal() {
		return ierr.InternalError(
			fmt.Sprintf("cannot fail a run already in stage %s", t.stage), nil)
	}
	t.stage = StageFailed

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.emitLocked(ctx, "", msg)
}

// transitionLocked enforces the single legal predecessor of a stage.
func (t *Tracker) transitionLocked(to, from Stage) error {
	if t.stage != from {
		return ierr.InternalError(
			fmt.Sprintf("invalid stage transition %s -> %s", t.stage, to), nil)
	}
	t.stage = to
	return nil
}

// percentageLocked computes progress clamped to [0, 100]. An empty run
// is complete the moment processing starts.
func (t *Tracker) percentageLocked() float64 {
	if t.stage == StageCompleted {
		return 100
	}
	if t.stage == StageProcessing && t.total == 0 {
		return 100
	}
	if t.total <= 0 {
		return 0
	}
	pct := float64(t.processed) / float64(t.total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (t *Tracker) emitLocked(ctx context.Context, currentFile, errMsg string) error {
	entry := LogEntry{
		Timestamp:      time.Now().UTC(),
		RunID:          t.runID,
		Stage:          t.stage,
		Percentage:     t.percentageLocked(),
		FilesProcessed: t.processed,
		TotalFiles:     t.total,
		CurrentFile:    currentFile,
		Error:          errMsg,
	}

	t.logger.Info("run_progress",
		slog.String("run_id", t.runID),
		slog.String("stage", string(t.stage)),
		slog.Float64("percentage", entry.Percentage),
		slog.Int("files_processed", t.processed),
		slog.Int("total_files", t.total))

	if err := t.store.Append(ctx, entry); err != nil {
		return ierr.StoreError("failed to append progress entry", err)
	}
	return nil
}
