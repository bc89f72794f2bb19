package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_AppendAndEntries(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, stage := range []Stage{StageInitialized, StageDiscovering, StageProcessing} {
		require.NoError(t, s.Append(ctx, LogEntry{
			Timestamp:      now,
			RunID:          "run-1",
			Stage:          stage,
			Percentage:     float64(i) * 10,
			FilesProcessed: i,
			TotalFiles:     10,
			CurrentFile:    "f.py",
		}))
	}

	entries, err := s.Entries(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, StageInitialized, entries[0].Stage)
	assert.Equal(t, StageProcessing, entries[2].Stage)
	assert.Less(t, entries[0].Seq, entries[1].Seq)
	assert.Less(t, entries[1].Seq, entries[2].Seq)
	assert.Equal(t, "f.py", entries[2].CurrentFile)
	assert.WithinDuration(t, now, entries[0].Timestamp, time.Second)
}

func TestSQLiteStore_Latest(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	latest, err := s.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.Append(ctx, LogEntry{RunID: "run-1", Stage: StageInitialized, Timestamp: time.Now()}))
	require.NoError(t, s.Append(ctx, LogEntry{RunID: "run-1", Stage: StageFailed, Error: "boom", Timestamp: time.Now()}))

	latest, err = s.Latest(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, StageFailed, latest.Stage)
	assert.Equal(t, "boom", latest.Error)
}

func TestSQLiteStore_RunsIsolated(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, LogEntry{RunID: "run-a", Stage: StageInitialized, Timestamp: time.Now()}))
	require.NoError(t, s.Append(ctx, LogEntry{RunID: "run-b", Stage: StageInitialized, Timestamp: time.Now()}))
	require.NoError(t, s.Append(ctx, LogEntry{RunID: "run-a", Stage: StageCompleted, Timestamp: time.Now()}))

	a, err := s.Entries(ctx, "run-a")
	require.NoError(t, err)
	b, err := s.Entries(ctx, "run-b")
	require.NoError(t, err)

	assert.Len(t, a, 2)
	assert.Len(t, b, 1)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), LogEntry{
		RunID: "run-1", Stage: StageCompleted, Percentage: 100, Timestamp: time.Now(),
	}))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	latest, err := s2.Latest(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, StageCompleted, latest.Stage)
}

func TestSQLiteStore_WorksWithTracker(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	tr, err := NewTracker(ctx, s, nil, "run-1", Options{})
	require.NoError(t, err)
	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 1))
	require.NoError(t, tr.FileDone(ctx, "only.py"))
	require.NoError(t, tr.Complete(ctx))

	entries, err := s.Entries(ctx, "run-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 4)
	assert.Equal(t, StageCompleted, entries[len(entries)-1].Stage)
}

func TestMemoryStore_Latest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	latest, err := s.Latest(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.Append(ctx, LogEntry{RunID: "r", Stage: StageInitialized}))
	require.NoError(t, s.Append(ctx, LogEntry{RunID: "r", Stage: StageDiscovering}))

	latest, err = s.Latest(ctx, "r")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, StageDiscovering, latest.Stage)
	assert.Equal(t, int64(2), latest.Seq)
}
