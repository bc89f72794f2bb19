// Package memstore hands extracted elements off to a memory store,
// either a remote memory service or a local SQLite database.
package memstore

import (
	"context"

	"github.com/codemem/repoingest/internal/embed"
)

// Tier is the memory tier an element lands in.
type Tier string

const (
	// TierProcedural holds code memories (functions, classes, methods).
	TierProcedural Tier = "procedural"
	// TierSemantic holds prose memories (module documentation).
	TierSemantic Tier = "semantic"
)

// TierForCode maps the code/prose split to a memory tier.
func TierForCode(isCode bool) Tier {
	if isCode {
		return TierProcedural
	}
	return TierSemantic
}

// ElementRecord is one element as written to the store.
type ElementRecord struct {
	RunID         string
	Tier          Tier
	Kind          string
	Name          string
	QualifiedName string
	FilePath      string
	StartLine     int
	EndLine       int
	Complexity    int
	Dependencies  []string
	Decorators    []string
	Tags          []string
	ContentHash   string
	Content       string // searchable text, what the embedding was computed over
}

// Client writes element records. A failed Store affects only that
// element, never the run.
type Client interface {
	// Store persists one record. vec may be nil when embeddings are
	// disabled or failed for this element.
	Store(ctx context.Context, rec ElementRecord, vec *embed.Vector) error

	// Health reports whether the store is reachable and writable.
	Health(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
