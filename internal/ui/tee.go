package ui

import (
	"context"

	"github.com/codemem/repoingest/internal/progress"
)

// TeeStore wraps a progress store and renders every appended entry.
// The CLI uses it to show live progress while the run is still being
// persisted for later inspection.
type TeeStore struct {
	inner    progress.Store
	renderer *Renderer
}

var _ progress.Store = (*TeeStore)(nil)

// NewTeeStore wraps inner so appended entries are also rendered.
func NewTeeStore(inner progress.Store, renderer *Renderer) *TeeStore {
	return &TeeStore{inner: inner, renderer: renderer}
}

// Append persists the entry, then renders it. Rendering never fails
// the append.
func (s *TeeStore) Append(ctx context.Context, entry progress.LogEntry) error {
	if err := s.inner.Append(ctx, entry); err != nil {
		return err
	}
	s.renderer.Progress(entry)
	return nil
}

// Entries delegates to the wrapped store.
func (s *TeeStore) Entries(ctx context.Context, runID string) ([]progress.LogEntry, error) {
	return s.inner.Entries(ctx, runID)
}

// Latest delegates to the wrapped store.
func (s *TeeStore) Latest(ctx context.Context, runID string) (*progress.LogEntry, error) {
	return s.inner.Latest(ctx, runID)
}

// Close delegates to the wrapped store.
func (s *TeeStore) Close() error {
	return s.inner.Close()
}
