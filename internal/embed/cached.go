package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of embeddings to keep in memory.
// At 768 dimensions * 4 bytes * 1000 entries that is about 3MB.
const DefaultCacheSize = 1000

// CachedBackend wraps a Backend with LRU caching so repeated element
// text (unchanged files across runs, duplicated snippets) is embedded
// only once.
type CachedBackend struct {
	inner Backend
	cache *lru.Cache[string, []float32]
}

// Verify interface implementation at compile time
var _ Backend = (*CachedBackend)(nil)

// NewCachedBackend creates a cached backend wrapping inner.
// cacheSize is the number of unique embeddings to keep in memory.
func NewCachedBackend(inner Backend, cacheSize int) *CachedBackend {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedBackend{
		inner: inner,
		cache: cache,
	}
}

// cacheKey derives a cache key from text and model. SHA256 keeps the key
// length fixed and handles arbitrary text.
func (c *CachedBackend) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Embed returns a cached embedding if available, otherwise computes and caches.
func (c *CachedBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds multiple texts, serving and filling the cache per text.
func (c *CachedBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	uncachedIndices := make([]int, 0, len(texts))
	uncachedTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			uncachedIndices = append(uncachedIndices, i)
			uncachedTexts = append(uncachedTexts, text)
		}
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	newEmbeddings, err := c.inner.EmbedBatch(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range uncachedIndices {
		results[idx] = newEmbeddings[j]
		c.cache.Add(c.cacheKey(texts[idx]), newEmbeddings[j])
	}

	return results, nil
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedBackend) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (c *CachedBackend) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the backend is ready (passthrough to inner).
func (c *CachedBackend) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner backend.
func (c *CachedBackend) Close() error {
	return c.inner.Close()
}
