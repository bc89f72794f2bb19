// Package pipeline orchestrates an ingestion run end to end: discovery,
// extraction, embedding, store handoff, progress and reporting.
package pipeline

import (
	"time"

	"github.com/codemem/repoingest/internal/report"
)

// Status is the terminal state of a run.
type Status string

const (
	// StatusCompleted means every discovered file was ingested.
	StatusCompleted Status = "completed"
	// StatusPartial means some files failed but at least one succeeded.
	StatusPartial Status = "partial"
	// StatusFailed means the run produced nothing usable.
	StatusFailed Status = "failed"
)

// FileStatus is the per-file outcome.
type FileStatus string

const (
	FilePending   FileStatus = "pending"
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"
)

// IngestionRequest describes one run.
type IngestionRequest struct {
	RootPath        string
	IncludePatterns []string
	ExcludePatterns []string
	MaxFileSize     int64
	MaxFiles        int

	// RespectGitignore applies .gitignore rules during discovery.
	RespectGitignore bool

	GenerateEmbeddings bool
	StoreResults       bool

	// Tags are stamped onto every extracted element.
	Tags []string

	// Timeout bounds processing of a single file. Zero uses the default.
	Timeout time.Duration

	// Concurrency is the worker pool size. Zero uses GOMAXPROCS.
	Concurrency int
}

// FileResult is the outcome for one discovered file. Written once.
type FileResult struct {
	RelPath             string
	Size                int64
	Status              FileStatus
	ElementsExtracted   int
	EmbeddingsGenerated int
	StoreWrites         int
	ErrorMessage        string
	Duration            time.Duration
}

// IngestionResponse is the structured result of a run. Failures below
// run-fatal are carried inside, never as a bare error.
type IngestionResponse struct {
	RunID       string
	Status      Status
	FileResults []FileResult
	Summary     report.Summary

	EmbeddingsGenerated int
	StoreWrites         int
	Elapsed             time.Duration
}
