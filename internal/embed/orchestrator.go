package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ierr "github.com/codemem/repoingest/internal/errors"
)

// Input is one text to embed together with its content classification.
type Input struct {
	Text string
	Kind ContentKind
}

// Result carries the vector for one input, or the error that prevented it.
// A failed input never fails its siblings.
type Result struct {
	Vector []float32
	Model  string
	Err    error
}

// OrchestratorConfig wires models and backends together.
type OrchestratorConfig struct {
	// Backends maps model identifier to the backend serving it.
	Backends map[string]Backend

	// Models maps content kind to model identifier.
	Models map[ContentKind]string

	// FallbackModel is used when the selected model's backend is missing
	// or unavailable. Must be a key in Backends to take effect.
	FallbackModel string

	BatchSize int
	Retry     RetryConfig
	Logger    *slog.Logger
}

// Orchestrator routes element text to the right model, deduplicates
// repeated text within a run, and survives partial backend failures.
type Orchestrator struct {
	backends map[string]Backend
	models   map[ContentKind]string
	fallback string

	batchSize int
	retry     RetryConfig
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string][]float32 // dedup cache keyed by sha256(text+model)

	availMu sync.Mutex
	avail   map[string]bool // availability checked once per model per run
}

// NewOrchestrator validates the wiring and returns an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if len(cfg.Backends) == 0 {
		return nil, fmt.Errorf("at least one backend is required")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("model table is required")
	}
	for kind, model := range cfg.Models {
		if _, ok := cfg.Backends[model]; !ok && model != cfg.FallbackModel {
			return nil, fmt.Errorf("no backend for model %q (kind %s)", model, kind)
		}
	}
	if cfg.BatchSize < MinBatchSize || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		backends:  cfg.Backends,
		models:    cfg.Models,
		fallback:  cfg.FallbackModel,
		batchSize: cfg.BatchSize,
		retry:     cfg.Retry,
		logger:    cfg.Logger,
		seen:      make(map[string][]float32),
		avail:     make(map[string]bool),
	}, nil
}

// ModelFor returns the model identifier an input kind routes to.
// Unknown kinds route like generic text.
func (o *Orchestrator) ModelFor(kind ContentKind) string {
	if model, ok := o.models[kind]; ok {
		return model
	}
	if model, ok := o.models[ContentGeneric]; ok {
		return model
	}
	return o.fallback
}

// Embed embeds a single text.
func (o *Orchestrator) Embed(ctx context.Context, text string, kind ContentKind) ([]float32, error) {
	results := o.EmbedMany(ctx, []Input{{Text: text, Kind: kind}})
	return results[0].Vector, results[0].Err
}

// EmbedMany embeds inputs and returns one result per input, in input
// order. Identical text going to the same model is embedded once per
// run. Backend calls are chunked; a chunk failure marks only the inputs
// in that chunk as failed.
func (o *Orchestrator) EmbedMany(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	// Group input positions by model, resolving dedup hits inline.
	type pending struct {
		key     string
		indices []int
	}
	byModel := make(map[string][]*pending)
	pendingByKey := make(map[string]*pending)

	for i, in := range inputs {
		model := o.ModelFor(in.Kind)
		results[i].Model = model

		key := dedupKey(in.Text, model)
		if vec, ok := o.lookup(key); ok {
			results[i].Vector = vec
			continue
		}

		if p, ok := pendingByKey[key]; ok {
			p.indices = append(p.indices, i)
			continue
		}
		p := &pending{key: key, indices: []int{i}}
		pendingByKey[key] = p
		byModel[model] = append(byModel[model], p)
	}

	for model, pendings := range byModel {
		backend, actualModel, err := o.resolveBackend(ctx, model)
		if err != nil {
			for _, p := range pendings {
				for _, idx := range p.indices {
					results[idx].Err = err
				}
			}
			continue
		}

		for start := 0; start < len(pendings); start += o.batchSize {
			end := min(start+o.batchSize, len(pendings))
			chunk := pendings[start:end]

			texts := make([]string, len(chunk))
			for j, p := range chunk {
				texts[j] = inputs[p.indices[0]].Text
			}

			var vectors [][]float32
			err := WithRetry(ctx, o.retry, func() error {
				var embedErr error
				vectors, embedErr = backend.EmbedBatch(ctx, texts)
				return embedErr
			})
			if err == nil && len(vectors) != len(texts) {
				err = fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
			}
			if err == nil {
				err = o.checkDimensions(backend, vectors)
			}
			if err != nil {
				wrapped := err
				var ie *ierr.IngestError
				if !errors.As(err, &ie) {
					wrapped = ierr.EmbeddingError(fmt.Sprintf("model %s batch failed", actualModel), err)
				}
				o.logger.Warn("embedding_batch_failed",
					slog.String("model", actualModel),
					slog.Int("batch_size", len(texts)),
					slog.String("error", err.Error()))
				for _, p := range chunk {
					for _, idx := range p.indices {
						results[idx].Err = wrapped
					}
				}
				continue
			}

			for j, p := range chunk {
				o.remember(p.key, vectors[j])
				for _, idx := range p.indices {
					results[idx].Vector = vectors[j]
					results[idx].Model = actualModel
				}
			}
		}
	}

	return results
}

// resolveBackend picks the backend for a model, falling back once when
// the primary is missing or down. Availability is probed at most once
// per model per orchestrator lifetime.
func (o *Orchestrator) resolveBackend(ctx context.Context, model string) (Backend, string, error) {
	if backend, ok := o.backends[model]; ok && o.available(ctx, model, backend) {
		return backend, model, nil
	}

	if o.fallback != "" && o.fallback != model {
		if backend, ok := o.backends[o.fallback]; ok && o.available(ctx, o.fallback, backend) {
			o.logger.Warn("embedding_model_fallback",
				slog.String("model", model),
				slog.String("fallback", o.fallback))
			return backend, o.fallback, nil
		}
	}

	return nil, "", ierr.New(ierr.ErrCodeBackendUnavailable,
		fmt.Sprintf("no available backend for model %s", model), nil)
}

func (o *Orchestrator) available(ctx context.Context, model string, backend Backend) bool {
	o.availMu.Lock()
	defer o.availMu.Unlock()
	if ok, probed := o.avail[model]; probed {
		return ok
	}
	ok := backend.Available(ctx)
	o.avail[model] = ok
	return ok
}

// checkDimensions verifies vectors match the backend's reported
// dimensionality. Backends that have not reported yet (0) are trusted.
func (o *Orchestrator) checkDimensions(backend Backend, vectors [][]float32) error {
	dims := backend.Dimensions()
	if dims == 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dims {
			return ierr.New(ierr.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has %d dimensions, want %d", i, len(v), dims), nil)
		}
	}
	return nil
}

func (o *Orchestrator) lookup(key string) ([]float32, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	vec, ok := o.seen[key]
	return vec, ok
}

func (o *Orchestrator) remember(key string, vec []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen[key] = vec
}

func dedupKey(text, model string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + model))
	return hex.EncodeToString(hash[:])
}

// Close closes every distinct backend once.
func (o *Orchestrator) Close() error {
	closed := make(map[Backend]bool)
	var firstErr error
	for _, backend := range o.backends {
		if closed[backend] {
			continue
		}
		closed[backend] = true
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
