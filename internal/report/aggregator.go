package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codemem/repoingest/internal/extract"
)

// DefaultTopN is how many entries the largest-files and most-complex
// rankings keep.
const DefaultTopN = 10

// Aggregator accumulates per-file outcomes into a run summary. Safe
// for concurrent Record calls from worker goroutines.
type Aggregator struct {
	mu        sync.Mutex
	topN      int
	recorded  map[string]bool
	finalized bool
	final     Summary

	filesFound     int
	filesProcessed int
	filesFailed    int
	totalBytes     int64

	elements       int
	embeddings     int
	storeWrites    int
	complexitySum  int
	complexityElem int

	byExtension map[string]int
	largest     *topFiles
	complex     *topElements
}

// NewAggregator creates an aggregator keeping topN ranking entries.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Aggregator{
		topN:        topN,
		recorded:    make(map[string]bool),
		byExtension: make(map[string]int),
		largest:     newTopFiles(topN),
		complex:     newTopElements(topN),
	}
}

// SetFilesFound records the discovery total.
func (a *Aggregator) SetFilesFound(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filesFound = n
}

// Record adds one file's outcome. Each file may be recorded exactly
// once; failed files count size and path but no elements.
func (a *Aggregator) Record(outcome Outcome, elements []extract.Element) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return fmt.Errorf("aggregator already finalized")
	}
	if a.recorded[outcome.RelPath] {
		return fmt.Errorf("file %s recorded twice", outcome.RelPath)
	}
	a.recorded[outcome.RelPath] = true

	a.totalBytes += outcome.Size
	a.byExtension[extensionOf(outcome.RelPath)]++
	a.largest.add(FileStat{Path: outcome.RelPath, Size: outcome.Size})

	if outcome.Failed {
		a.filesFailed++
		return nil
	}

	a.filesProcessed++
	a.elements += len(elements)
	a.embeddings += outcome.EmbeddingsGenerated
	a.storeWrites += outcome.StoreWrites

	for _, el := range elements {
		if !el.Kind.IsCode() {
			continue
		}
		a.complexitySum += el.Complexity
		a.complexityElem++
		a.complex.add(ElementStat{
			QualifiedName: el.QualifiedName,
			FilePath:      el.FilePath,
			Complexity:    el.Complexity,
		})
	}

	return nil
}

// Snapshot returns the current partial summary. Safe to call mid-run.
func (a *Aggregator) Snapshot() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return a.final
	}
	return a.summaryLocked()
}

// Summarize finalizes and returns the summary. Further Record calls
// fail; repeated Summarize calls return the same value.
func (a *Aggregator) Summarize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finalized {
		a.final = a.summaryLocked()
		a.finalized = true
	}
	return a.final
}

func (a *Aggregator) summaryLocked() Summary {
	byExt := make(map[string]int, len(a.byExtension))
	for ext, n := range a.byExtension {
		byExt[ext] = n
	}

	avg := 0.0
	if a.complexityElem > 0 {
		avg = float64(a.complexitySum) / float64(a.complexityElem)
	}

	return Summary{
		FilesFound:          a.filesFound,
		FilesProcessed:      a.filesProcessed,
		FilesFailed:         a.filesFailed,
		TotalBytes:          a.totalBytes,
		ElementsExtracted:   a.elements,
		EmbeddingsGenerated: a.embeddings,
		StoreWrites:         a.storeWrites,
		AverageComplexity:   avg,
		ByExtension:         byExt,
		TopLargest:          a.largest.sorted(),
		TopComplex:          a.complex.sorted(),
	}
}

// extensionOf groups files by lowercase extension, with extensionless
// files under "(none)".
func extensionOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "(none)"
	}
	return ext
}
