package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	ingErr := New(ErrCodeParseFailed, "failed to parse main.py", originalErr)

	require.NotNil(t, ingErr)
	assert.Equal(t, originalErr, errors.Unwrap(ingErr))
	assert.True(t, errors.Is(ingErr, originalErr))
}

func TestIngestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "path error",
			code:     ErrCodePathNotFound,
			message:  "no such directory",
			expected: "[ERR_101_PATH_NOT_FOUND] no such directory",
		},
		{
			name:     "parse error",
			code:     ErrCodeParseFailed,
			message:  "main.py has syntax errors",
			expected: "[ERR_201_PARSE_FAILED] main.py has syntax errors",
		},
		{
			name:     "embedding error",
			code:     ErrCodeEmbeddingFailed,
			message:  "backend returned 500",
			expected: "[ERR_301_EMBEDDING_FAILED] backend returned 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestIngestError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeStoreFailed, "write failed", nil)
	err2 := New(ErrCodeStoreFailed, "different message", nil)
	err3 := New(ErrCodeTimeout, "timed out", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodePathNotFound, CategoryConfig},
		{ErrCodeRunLocked, CategoryConfig},
		{ErrCodeParseFailed, CategoryFile},
		{ErrCodeSizeLimit, CategoryFile},
		{ErrCodeEmbeddingFailed, CategoryEmbedding},
		{ErrCodeBackendUnavailable, CategoryEmbedding},
		{ErrCodeStoreFailed, CategoryStore},
		{ErrCodeTimeout, CategoryInternal},
		{ErrCodeInternal, CategoryInternal},
		{"garbage", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.category, categoryFromCode(tt.code))
		})
	}
}

func TestSeverity_FatalOnlyForRunLevelErrors(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodePathNotFound, "gone", nil)))
	assert.True(t, IsFatal(New(ErrCodeRunLocked, "locked", nil)))

	// Per-file and per-element failures never abort the run.
	assert.False(t, IsFatal(New(ErrCodeParseFailed, "bad syntax", nil)))
	assert.False(t, IsFatal(New(ErrCodeSizeLimit, "too big", nil)))
	assert.False(t, IsFatal(New(ErrCodeEmbeddingFailed, "backend down", nil)))
	assert.False(t, IsFatal(New(ErrCodeStoreFailed, "write failed", nil)))
	assert.False(t, IsFatal(New(ErrCodeTimeout, "slow file", nil)))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeEmbeddingFailed, "x", nil)))
	assert.True(t, IsRetryable(New(ErrCodeBackendUnavailable, "x", nil)))
	assert.True(t, IsRetryable(New(ErrCodeStoreUnavailable, "x", nil)))
	assert.False(t, IsRetryable(New(ErrCodeParseFailed, "x", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))

	cause := errors.New("disk exploded")
	wrapped := Wrap(ErrCodeStoreFailed, cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, "disk exploded", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestHelperConstructors(t *testing.T) {
	pe := ParseError("src/app.py", errors.New("unexpected indent"))
	assert.Equal(t, ErrCodeParseFailed, pe.Code)
	assert.Equal(t, "src/app.py", pe.Details["file"])

	se := SizeLimitExceeded("big.py", 2048, 1024)
	assert.Equal(t, ErrCodeSizeLimit, se.Code)
	assert.Contains(t, se.Message, "2048")

	te := TimeoutError("slow.py", nil)
	assert.Equal(t, ErrCodeTimeout, te.Code)
	assert.Equal(t, "slow.py", te.Details["file"])
}
