package report

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemem/repoingest/internal/extract"
)

func codeElement(qualified string, complexity int) extract.Element {
	return extract.Element{
		Kind:          extract.KindFunction,
		Name:          qualified,
		QualifiedName: qualified,
		FilePath:      "f.py",
		StartLine:     1,
		EndLine:       2,
		Complexity:    complexity,
	}
}

func TestAggregator_Totals(t *testing.T) {
	a := NewAggregator(5)
	a.SetFilesFound(3)

	require.NoError(t, a.Record(
		Outcome{RelPath: "a.py", Size: 100, EmbeddingsGenerated: 2, StoreWrites: 2},
		[]extract.Element{codeElement("f", 1), codeElement("g", 3)}))
	require.NoError(t, a.Record(
		Outcome{RelPath: "b.py", Size: 50, EmbeddingsGenerated: 1, StoreWrites: 0},
		[]extract.Element{codeElement("h", 2)}))
	require.NoError(t, a.Record(
		Outcome{RelPath: "broken.py", Size: 25, Failed: true}, nil))

	s := a.Summarize()
	assert.Equal(t, 3, s.FilesFound)
	assert.Equal(t, 2, s.FilesProcessed)
	assert.Equal(t, 1, s.FilesFailed)
	assert.Equal(t, int64(175), s.TotalBytes)
	assert.Equal(t, 3, s.ElementsExtracted)
	assert.Equal(t, 3, s.EmbeddingsGenerated)
	assert.Equal(t, 2, s.StoreWrites)
	assert.InDelta(t, 2.0, s.AverageComplexity, 1e-9)
	assert.Equal(t, map[string]int{".py": 3}, s.ByExtension)
}

func TestAggregator_DuplicateFileRejected(t *testing.T) {
	a := NewAggregator(5)
	require.NoError(t, a.Record(Outcome{RelPath: "a.py", Size: 1}, nil))
	assert.Error(t, a.Record(Outcome{RelPath: "a.py", Size: 1}, nil))
}

func TestAggregator_FailedFileContributesSizeNotElements(t *testing.T) {
	a := NewAggregator(5)
	require.NoError(t, a.Record(
		Outcome{RelPath: "huge.py", Size: 5000, Failed: true},
		[]extract.Element{codeElement("ignored", 9)}))

	s := a.Summarize()
	assert.Equal(t, int64(5000), s.TotalBytes)
	assert.Zero(t, s.ElementsExtracted)
	assert.Zero(t, s.AverageComplexity)
	require.Len(t, s.TopLargest, 1)
	assert.Equal(t, "huge.py", s.TopLargest[0].Path)
	assert.Empty(t, s.TopComplex)
}

func TestAggregator_TopLargestBoundedAndSorted(t *testing.T) {
	a := NewAggregator(3)
	for i := 1; i <= 10; i++ {
		require.NoError(t, a.Record(
			Outcome{RelPath: fmt.Sprintf("f%02d.py", i), Size: int64(i * 10)}, nil))
	}

	s := a.Summarize()
	require.Len(t, s.TopLargest, 3)
	assert.Equal(t, []FileStat{
		{Path: "f10.py", Size: 100},
		{Path: "f09.py", Size: 90},
		{Path: "f08.py", Size: 80},
	}, s.TopLargest)
}

func TestAggregator_TopComplexBoundedAndSorted(t *testing.T) {
	a := NewAggregator(2)
	require.NoError(t, a.Record(Outcome{RelPath: "a.py", Size: 1}, []extract.Element{
		codeElement("low", 1),
		codeElement("mid", 5),
		codeElement("high", 9),
	}))

	s := a.Summarize()
	require.Len(t, s.TopComplex, 2)
	assert.Equal(t, "high", s.TopComplex[0].QualifiedName)
	assert.Equal(t, "mid", s.TopComplex[1].QualifiedName)
}

func TestAggregator_ModuleElementsExcludedFromComplexity(t *testing.T) {
	a := NewAggregator(5)
	mod := extract.Element{
		Kind:          extract.KindModule,
		Name:          "pkg",
		QualifiedName: "pkg",
		FilePath:      "pkg.py",
		StartLine:     1,
		EndLine:       1,
		Complexity:    1,
	}
	require.NoError(t, a.Record(Outcome{RelPath: "pkg.py", Size: 10},
		[]extract.Element{mod, codeElement("f", 4)}))

	s := a.Summarize()
	assert.Equal(t, 2, s.ElementsExtracted)
	assert.InDelta(t, 4.0, s.AverageComplexity, 1e-9)
	require.Len(t, s.TopComplex, 1)
	assert.Equal(t, "f", s.TopComplex[0].QualifiedName)
}

func TestAggregator_SnapshotMidRun(t *testing.T) {
	a := NewAggregator(5)
	require.NoError(t, a.Record(Outcome{RelPath: "a.py", Size: 10}, nil))

	s := a.Snapshot()
	assert.Equal(t, 1, s.FilesProcessed)

	// Snapshot does not finalize.
	require.NoError(t, a.Record(Outcome{RelPath: "b.py", Size: 10}, nil))
	assert.Equal(t, 2, a.Snapshot().FilesProcessed)
}

func TestAggregator_SummarizeIdempotent(t *testing.T) {
	a := NewAggregator(5)
	require.NoError(t, a.Record(Outcome{RelPath: "a.py", Size: 10}, nil))

	first := a.Summarize()
	assert.Error(t, a.Record(Outcome{RelPath: "b.py", Size: 10}, nil))
	second := a.Summarize()
	assert.Equal(t, first, second)
	assert.Equal(t, first, a.Snapshot())
}

func TestAggregator_ConcurrentRecords(t *testing.T) {
	a := NewAggregator(5)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = a.Record(Outcome{
				RelPath: fmt.Sprintf("f%d.py", i),
				Size:    1,
			}, []extract.Element{codeElement(fmt.Sprintf("fn%d", i), 1)})
		}(i)
	}
	wg.Wait()

	s := a.Summarize()
	assert.Equal(t, 50, s.FilesProcessed)
	assert.Equal(t, 50, s.ElementsExtracted)
	assert.Equal(t, int64(50), s.TotalBytes)
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, ".py", extensionOf("src/app.py"))
	assert.Equal(t, ".py", extensionOf("WEIRD.PY"))
	assert.Equal(t, "(none)", extensionOf("Makefile"))
}
