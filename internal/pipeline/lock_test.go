package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock_AcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewRunLock(dir)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.Equal(t, filepath.Join(dir, "run.lock"), lock.Path())

	require.NoError(t, lock.Unlock())

	// Reacquirable after release.
	acquired, err = lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, lock.Unlock())
}

func TestRunLock_Contention(t *testing.T) {
	dir := t.TempDir()

	first := NewRunLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = first.Unlock() }()

	second := NewRunLock(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, first.Unlock())

	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestRunLock_UnlockWithoutLock(t *testing.T) {
	lock := NewRunLock(t.TempDir())
	assert.NoError(t, lock.Unlock())
}

func TestRunLock_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	lock := NewRunLock(dir)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, lock.Unlock())
}
