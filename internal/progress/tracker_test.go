package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, store Store, opts Options) *Tracker {
	t.Helper()
	tr, err := NewTracker(context.Background(), store, nil, "run-1", opts)
	require.NoError(t, err)
	return tr
}

func stages(t *testing.T, store Store) []Stage {
	t.Helper()
	entries, err := store.Entries(context.Background(), "run-1")
	require.NoError(t, err)
	var out []Stage
	for _, e := range entries {
		out = append(out, e.Stage)
	}
	return out
}

func TestTracker_HappyPath(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 2))
	require.NoError(t, tr.FileDone(ctx, "a.py"))
	require.NoError(t, tr.FileDone(ctx, "b.py"))
	require.NoError(t, tr.Complete(ctx))

	assert.Equal(t, StageCompleted, tr.Stage())

	got := stages(t, store)
	assert.Equal(t, StageInitialized, got[0])
	assert.Equal(t, StageDiscovering, got[1])
	assert.Equal(t, StageProcessing, got[2])
	assert.Equal(t, StageCompleted, got[len(got)-1])

	latest, err := store.Latest(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, StageCompleted, latest.Stage)
	assert.Equal(t, 100.0, latest.Percentage)
}

func TestTracker_FileStrideEmission(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{FileStride: 10, PercentStride: 60})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 20))

	for i := 0; i < 20; i++ {
		require.NoError(t, tr.FileDone(ctx, "file.py"))
	}

	entries, err := store.Entries(ctx, "run-1")
	require.NoError(t, err)

	var processing []LogEntry
	for _, e := range entries {
		if e.Stage == StageProcessing && e.FilesProcessed > 0 {
			processing = append(processing, e)
		}
	}
	require.Len(t, processing, 2)
	assert.Equal(t, 10, processing[0].FilesProcessed)
	assert.Equal(t, 20, processing[1].FilesProcessed)
	assert.Equal(t, 100.0, processing[1].Percentage)
}

func TestTracker_PercentStrideEmission(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{FileStride: 1000, PercentStride: 25})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 40))

	for i := 0; i < 40; i++ {
		require.NoError(t, tr.FileDone(ctx, "file.py"))
	}

	entries, err := store.Entries(ctx, "run-1")
	require.NoError(t, err)

	var counts []int
	for _, e := range entries {
		if e.Stage == StageProcessing && e.FilesProcessed > 0 {
			counts = append(counts, e.FilesProcessed)
		}
	}
	assert.Equal(t, []int{10, 20, 30, 40}, counts)
}

func TestTracker_FinalFileAlwaysEmitted(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{FileStride: 100, PercentStride: 100})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 3))
	require.NoError(t, tr.FileDone(ctx, "a.py"))
	require.NoError(t, tr.FileDone(ctx, "b.py"))
	require.NoError(t, tr.FileDone(ctx, "c.py"))

	latest, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.FilesProcessed)
	assert.Equal(t, 100.0, latest.Percentage)
}

func TestTracker_EmptyRunIsHundredPercent(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 0))

	latest, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StageProcessing, latest.Stage)
	assert.Equal(t, 100.0, latest.Percentage)

	require.NoError(t, tr.Complete(ctx))
}

func TestTracker_PercentageClamped(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{FileStride: 1, PercentStride: 1})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 2))

	// More completions than the discovered total must not exceed 100%.
	for i := 0; i < 4; i++ {
		require.NoError(t, tr.FileDone(ctx, "x.py"))
	}

	latest, err := store.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, latest.Percentage)
}

func TestTracker_PercentageMonotonic(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{FileStride: 3, PercentStride: 10})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 25))
	for i := 0; i < 25; i++ {
		require.NoError(t, tr.FileDone(ctx, "file.py"))
	}
	require.NoError(t, tr.Complete(ctx))

	assertPercentagesNonDecreasing(t, store)
}

func TestTracker_PercentageMonotonicAcrossMidRunFail(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{FileStride: 2, PercentStride: 5})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 10))
	for i := 0; i < 6; i++ {
		require.NoError(t, tr.FileDone(ctx, "file.py"))
	}
	require.NoError(t, tr.Fail(ctx, errors.New("backend exploded")))

	entries, err := store.Entries(ctx, "run-1")
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, StageFailed, last.Stage)
	assert.Equal(t, 60.0, last.Percentage)

	assertPercentagesNonDecreasing(t, store)
}

// assertPercentagesNonDecreasing walks the full entry list, transition
// entries included, checking percentages never go backwards.
func assertPercentagesNonDecreasing(t *testing.T, store Store) {
	t.Helper()
	entries, err := store.Entries(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i].Percentage, entries[i-1].Percentage,
			"entry %d (%s) went backwards", i, entries[i].Stage)
	}
}

func TestTracker_FailFromAnyStage(t *testing.T) {
	for _, setup := range []struct {
		name    string
		prepare func(ctx context.Context, tr *Tracker)
	}{
		{"initialized", func(ctx context.Context, tr *Tracker) {}},
		{"discovering", func(ctx context.Context, tr *Tracker) {
			require.NoError(t, tr.StartDiscovery(ctx))
		}},
		{"processing", func(ctx context.Context, tr *Tracker) {
			require.NoError(t, tr.StartDiscovery(ctx))
			require.NoError(t, tr.StartProcessing(ctx, 5))
		}},
	} {
		t.Run(setup.name, func(t *testing.T) {
			store := NewMemoryStore()
			tr := newTestTracker(t, store, Options{})
			ctx := context.Background()

			setup.prepare(ctx, tr)
			require.NoError(t, tr.Fail(ctx, errors.New("backend exploded")))
			assert.Equal(t, StageFailed, tr.Stage())

			latest, err := store.Latest(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, StageFailed, latest.Stage)
			assert.Equal(t, "backend exploded", latest.Error)
		})
	}
}

func TestTracker_TerminalStagesReject(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{})
	ctx := context.Background()

	require.NoError(t, tr.StartDiscovery(ctx))
	require.NoError(t, tr.StartProcessing(ctx, 0))
	require.NoError(t, tr.Complete(ctx))

	assert.Error(t, tr.Fail(ctx, errors.New("too late")))
	assert.Error(t, tr.StartDiscovery(ctx))
	assert.Error(t, tr.FileDone(ctx, "x.py"))
}

func TestTracker_InvalidTransitions(t *testing.T) {
	store := NewMemoryStore()
	tr := newTestTracker(t, store, Options{})
	ctx := context.Background()

	// Skipping discovery is not allowed.
	assert.Error(t, tr.StartProcessing(ctx, 5))
	// Completing before processing is not allowed.
	assert.Error(t, tr.Complete(ctx))
	// Neither is reporting files outside processing.
	assert.Error(t, tr.FileDone(ctx, "x.py"))
}

func TestTracker_RequiresStore(t *testing.T) {
	_, err := NewTracker(context.Background(), nil, nil, "run-1", Options{})
	assert.Error(t, err)
}
