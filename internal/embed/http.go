package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPConfig configures an OpenAI-compatible embedding backend.
type HTTPConfig struct {
	Endpoint   string        // Base URL, e.g. http://localhost:1234
	Model      string        // Model identifier sent with each request
	APIKey     string        // Optional bearer token
	Timeout    time.Duration // Per-request timeout
	Dimensions int           // 0 means detect from the first response
	PoolSize   int           // HTTP connection pool size
}

const httpPoolSize = 4

// HTTPBackend generates embeddings via an OpenAI-compatible
// POST /v1/embeddings endpoint (LM Studio, vLLM, OpenAI itself).
type HTTPBackend struct {
	client    *http.Client
	transport *http.Transport
	config    HTTPConfig

	mu     sync.RWMutex
	closed bool
	dims   int
}

// Verify interface implementation at compile time
var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend for the given endpoint and model.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = httpPoolSize
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	// IdleConnTimeout is short because ingestion runs are short-lived;
	// connections should not linger after Ctrl+C.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	// No http.Client.Timeout: it would override per-request context
	// timeouts set by callers.
	return &HTTPBackend{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}, nil
}

// embeddingsRequest is the OpenAI-compatible request body.
type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingsResponse is the OpenAI-compatible response body.
type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates an embedding for a single text.
func (e *HTTPBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("backend is closed")
	}
	e.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return make([]float32, e.Dimensions()), nil
	}

	embeddings, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in input order.
// Empty texts get zero vectors without a round trip.
func (e *HTTPBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("backend is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var nonEmptyIdx []int
	var nonEmpty []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		nonEmptyIdx = append(nonEmptyIdx, i)
		nonEmpty = append(nonEmpty, text)
	}

	if len(nonEmpty) > 0 {
		embeddings, err := e.doEmbed(ctx, nonEmpty)
		if err != nil {
			return nil, err
		}
		if len(embeddings) != len(nonEmpty) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(nonEmpty), len(embeddings))
		}
		for j, idx := range nonEmptyIdx {
			results[idx] = embeddings[j]
		}
	}

	dims := e.Dimensions()
	for i := range results {
		if results[i] == nil {
			results[i] = make([]float32, dims)
		}
	}

	return results, nil
}

// doEmbed posts one /v1/embeddings request and returns vectors in input
// order, unit-normalized.
func (e *HTTPBackend) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embeddingsRequest{
		Model: e.config.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.Endpoint + "/v1/embeddings"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// Servers return vectors tagged with the input index; place by index
	// rather than trusting array order.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", d.Index)
		}
		embeddings[d.Index] = normalizeVector(d.Embedding)
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}

	e.recordDimensions(len(embeddings[0]))
	return embeddings, nil
}

// recordDimensions remembers the dimensionality seen on the wire.
func (e *HTTPBackend) recordDimensions(dims int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = dims
	}
}

// Dimensions returns the embedding dimension, or 0 before the first
// successful request when not configured explicitly.
func (e *HTTPBackend) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *HTTPBackend) ModelName() string {
	return e.config.Model
}

// Available checks the server's /v1/models endpoint.
func (e *HTTPBackend) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, e.config.Endpoint+"/v1/models", nil)
	if err != nil {
		return false
	}
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases pooled connections.
func (e *HTTPBackend) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
