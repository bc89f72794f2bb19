package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codemem/repoingest/internal/embed"
	ierr "github.com/codemem/repoingest/internal/errors"
)

// HTTPConfig configures the remote memory service client.
type HTTPConfig struct {
	Endpoint string        // Base URL of the memory service
	APIKey   string        // Optional bearer token
	Timeout  time.Duration // Per-request timeout
}

const defaultStoreTimeout = 10 * time.Second

// HTTPClient stores records in a remote memory service over JSON.
type HTTPClient struct {
	client *http.Client
	config HTTPConfig
}

// Verify interface implementation at compile time
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the given memory service endpoint.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("store endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultStoreTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &HTTPClient{
		client: &http.Client{},
		config: cfg,
	}, nil
}

// memoryRequest is the wire format for one stored memory.
type memoryRequest struct {
	RunID          string         `json:"run_id"`
	Tier           string         `json:"tier"`
	Content        string         `json:"content"`
	Embedding      []float32      `json:"embedding,omitempty"`
	EmbeddingModel string         `json:"embedding_model,omitempty"`
	Metadata       map[string]any `json:"metadata"`
}

func buildMemoryRequest(rec ElementRecord, vec *embed.Vector) memoryRequest {
	req := memoryRequest{
		RunID:   rec.RunID,
		Tier:    string(rec.Tier),
		Content: rec.Content,
		Metadata: map[string]any{
			"kind":           rec.Kind,
			"name":           rec.Name,
			"qualified_name": rec.QualifiedName,
			"file_path":      rec.FilePath,
			"start_line":     rec.StartLine,
			"end_line":       rec.EndLine,
			"complexity":     rec.Complexity,
			"dependencies":   rec.Dependencies,
			"decorators":     rec.Decorators,
			"tags":           rec.Tags,
			"content_hash":   rec.ContentHash,
		},
	}
	if vec != nil {
		req.Embedding = vec.Values
		req.EmbeddingModel = vec.Model
	}
	return req
}

// Store posts one record to the memory service.
func (c *HTTPClient) Store(ctx context.Context, rec ElementRecord, vec *embed.Vector) error {
	body, err := json.Marshal(buildMemoryRequest(rec, vec))
	if err != nil {
		return ierr.StoreError("failed to encode record", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	url := c.config.Endpoint + "/api/v1/memories"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ierr.StoreError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ierr.StoreError("store request failed", err).
			WithDetail("qualified_name", rec.QualifiedName)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ierr.StoreError(
			fmt.Sprintf("store failed with status %d: %s", resp.StatusCode, string(respBody)), nil).
			WithDetail("qualified_name", rec.QualifiedName)
	}

	return nil
}

// Health checks the service health endpoint.
func (c *HTTPClient) Health(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Close releases pooled connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
