package progress

import (
	"context"
	"sync"
)

// MemoryStore keeps progress entries in memory. Used in tests and when
// no data directory is configured.
type MemoryStore struct {
	mu      sync.Mutex
	nextSeq int64
	entries map[string][]LogEntry
}

// Verify interface implementation at compile time
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]LogEntry)}
}

// Append adds one entry, assigning the next sequence number.
func (s *MemoryStore) Append(_ context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	entry.Seq = s.nextSeq
	s.entries[entry.RunID] = append(s.entries[entry.RunID], entry)
	return nil
}

// Entries returns all entries for a run in sequence order.
func (s *MemoryStore) Entries(_ context.Context, runID string) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.entries[runID]...), nil
}

// Latest returns the newest entry for a run, or nil.
func (s *MemoryStore) Latest(_ context.Context, runID string) (*LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[runID]
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[len(entries)-1]
	return &last, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
