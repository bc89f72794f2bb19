package embed

import (
	"context"
	"fmt"
	"sync"
)

// fakeBackend is a deterministic in-memory backend that counts calls
// and can be scripted to fail on specific texts.
type fakeBackend struct {
	model string
	dims  int
	down  bool

	mu         sync.Mutex
	embedCalls int
	texts      []string
	failOn     map[string]bool
}

func newFakeBackend(model string, dims int) *fakeBackend {
	return &fakeBackend{model: model, dims: dims, failOn: map[string]bool{}}
}

func (f *fakeBackend) vectorFor(text string) []float32 {
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)
	}
	return vec
}

func (f *fakeBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	f.texts = append(f.texts, texts...)

	results := make([][]float32, len(texts))
	for i, text := range texts {
		if f.failOn[text] {
			return nil, fmt.Errorf("scripted failure for %q", text)
		}
		results[i] = f.vectorFor(text)
	}
	return results, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

func (f *fakeBackend) seenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeBackend) Dimensions() int                  { return f.dims }
func (f *fakeBackend) ModelName() string                { return f.model }
func (f *fakeBackend) Available(_ context.Context) bool { return !f.down }
func (f *fakeBackend) Close() error                     { return nil }

var _ Backend = (*fakeBackend)(nil)
