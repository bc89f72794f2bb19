// Package report aggregates per-file results into run summaries.
package report

// Outcome is the per-file input to aggregation, recorded exactly once
// per file.
type Outcome struct {
	RelPath             string
	Size                int64
	Failed              bool
	EmbeddingsGenerated int
	StoreWrites         int
}

// FileStat names a file and its size, for the largest-files ranking.
type FileStat struct {
	Path string
	Size int64
}

// ElementStat names an element and its complexity, for the
// most-complex ranking.
type ElementStat struct {
	QualifiedName string
	FilePath      string
	Complexity    int
}

// Summary is the aggregate view of a run. Failed files contribute
// their size and path to totals but no elements.
type Summary struct {
	FilesFound     int
	FilesProcessed int
	FilesFailed    int
	TotalBytes     int64

	ElementsExtracted   int
	EmbeddingsGenerated int
	StoreWrites         int

	AverageComplexity float64
	ByExtension       map[string]int

	TopLargest []FileStat
	TopComplex []ElementStat
}
