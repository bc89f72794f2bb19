package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codemem/repoingest/internal/discover"
	"github.com/codemem/repoingest/internal/embed"
	ierr "github.com/codemem/repoingest/internal/errors"
	"github.com/codemem/repoingest/internal/extract"
	"github.com/codemem/repoingest/internal/memstore"
	"github.com/codemem/repoingest/internal/metrics"
	"github.com/codemem/repoingest/internal/progress"
	"github.com/codemem/repoingest/internal/report"
)

// DefaultFileTimeout bounds processing of a single file.
const DefaultFileTimeout = 30 * time.Second

// Discoverer finds ingestable files under a root.
type Discoverer interface {
	Discover(ctx context.Context, opts discover.Options) ([]discover.File, error)
}

// Embedder turns element text into vectors, one result per input.
type Embedder interface {
	EmbedMany(ctx context.Context, inputs []embed.Input) []embed.Result
}

// Deps are the pipeline's collaborators. Everything is injected; the
// pipeline holds no globals.
type Deps struct {
	Discoverer Discoverer        // required
	Extractor  extract.Extractor // required
	Embedder   Embedder          // required when requests generate embeddings
	Store      memstore.Client   // required when requests store results
	Progress   progress.Store    // required
	Metrics    *metrics.Metrics  // optional, defaults to unregistered
	Logger     *slog.Logger      // optional

	// DataDir holds the run lock. Empty disables cross-process locking.
	DataDir string

	ProgressOptions progress.Options
	TopN            int
}

// Pipeline executes ingestion runs.
type Pipeline struct {
	discoverer   Discoverer
	extractor    extract.Extractor
	embedder     Embedder
	store        memstore.Client
	progStore    progress.Store
	metrics      *metrics.Metrics
	logger       *slog.Logger
	dataDir      string
	progressOpts progress.Options
	topN         int
}

// New validates deps and builds a pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Progress == nil {
		return nil, fmt.Errorf("progress store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewUnregistered()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.TopN <= 0 {
		deps.TopN = report.DefaultTopN
	}

	return &Pipeline{
		discoverer:   deps.Discoverer,
		extractor:    deps.Extractor,
		embedder:     deps.Embedder,
		store:        deps.Store,
		progStore:    deps.Progress,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		dataDir:      deps.DataDir,
		progressOpts: deps.ProgressOptions,
		topN:         deps.TopN,
	}, nil
}

// runState is per-run bookkeeping shared by workers.
type runState struct {
	mu   sync.Mutex
	seen map[string]bool // element content hashes already embedded this run
}

// markSeen returns true when the hash was already recorded.
func (rs *runState) markSeen(hash string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.seen[hash] {
		return true
	}
	rs.seen[hash] = true
	return false
}

// Run executes one ingestion. Per-file failures are carried inside the
// response; only run-fatal conditions (bad root, invalid request, lock
// contention) return an error.
func (p *Pipeline) Run(ctx context.Context, req IngestionRequest) (*IngestionResponse, error) {
	runStart := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))

	if req.MaxFileSize <= 0 {
		req.MaxFileSize = discover.DefaultMaxFileSize
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultFileTimeout
	}
	if req.Concurrency <= 0 {
		req.Concurrency = runtime.GOMAXPROCS(0)
	}
	if req.GenerateEmbeddings && p.embedder == nil {
		return nil, ierr.New(ierr.ErrCodeConfigInvalid, "embeddings requested but no embedder configured", nil)
	}
	if req.StoreResults && p.store == nil {
		return nil, ierr.New(ierr.ErrCodeConfigInvalid, "store requested but no store client configured", nil)
	}

	if p.dataDir != "" {
		lock := NewRunLock(p.dataDir)
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, ierr.InternalError("failed to acquire run lock", err)
		}
		if !acquired {
			return nil, ierr.New(ierr.ErrCodeRunLocked,
				fmt.Sprintf("another ingestion holds %s", lock.Path()), nil)
		}
		defer func() { _ = lock.Unlock() }()
	}

	// Terminal progress entries must land even when ctx is cancelled.
	bg := context.WithoutCancel(ctx)

	tracker, err := progress.NewTracker(ctx, p.progStore, logger, runID, p.progressOpts)
	if err != nil {
		return nil, err
	}

	logger.Info("run_started",
		slog.String("root", req.RootPath),
		slog.Bool("embeddings", req.GenerateEmbeddings),
		slog.Bool("store", req.StoreResults),
		slog.Int("concurrency", req.Concurrency))

	if req.StoreResults && !p.store.Health(ctx) {
		logger.Warn("store_unreachable", slog.String("hint", "writes will be retried per element"))
	}

	if err := tracker.StartDiscovery(ctx); err != nil {
		return nil, err
	}

	discoveryStart := time.Now()
	files, err := p.discoverer.Discover(ctx, discover.Options{
		RootDir:          req.RootPath,
		IncludePatterns:  req.IncludePatterns,
		ExcludePatterns:  req.ExcludePatterns,
		MaxFileSize:      req.MaxFileSize,
		MaxFiles:         req.MaxFiles,
		RespectGitignore: req.RespectGitignore,
	})
	if err != nil {
		_ = tracker.Fail(bg, err)
		return nil, err
	}
	p.metrics.DiscoveryDuration.Observe(time.Since(discoveryStart).Seconds())
	p.metrics.FilesDiscovered.Add(float64(len(files)))

	agg := report.NewAggregator(p.topN)
	agg.SetFilesFound(len(files))
	if err := tracker.StartProcessing(ctx, len(files)); err != nil {
		return nil, err
	}

	rs := &runState{seen: make(map[string]bool)}
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Concurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			res, elements := p.processFile(gctx, rs, req, f, runID)
			results[i] = res

			outcome := report.Outcome{
				RelPath:             res.RelPath,
				Size:                res.Size,
				Failed:              res.Status == FileFailed,
				EmbeddingsGenerated: res.EmbeddingsGenerated,
				StoreWrites:         res.StoreWrites,
			}
			if err := agg.Record(outcome, elements); err != nil {
				logger.Warn("result_record_failed",
					slog.String("file", res.RelPath),
					slog.String("error", err.Error()))
			}

			if res.Status == FileCompleted {
				p.metrics.FilesProcessed.Inc()
			} else {
				p.metrics.FilesFailed.Inc()
				logger.Warn("file_failed",
					slog.String("file", res.RelPath),
					slog.String("error", res.ErrorMessage))
			}
			p.metrics.FileDuration.Observe(res.Duration.Seconds())

			if err := tracker.FileDone(bg, res.RelPath); err != nil {
				logger.Warn("progress_emit_failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	waitErr := g.Wait()

	// Files never started keep their discovery identity as pending.
	for i, f := range files {
		if results[i].RelPath == "" {
			results[i] = FileResult{RelPath: f.RelPath, Size: f.Size, Status: FilePending}
		}
	}

	summary := agg.Summarize()
	status := terminalStatus(waitErr, len(files), summary)

	if status == StatusFailed {
		cause := waitErr
		if cause == nil {
			cause = fmt.Errorf("all %d files failed", len(files))
		}
		_ = tracker.Fail(bg, cause)
	} else {
		_ = tracker.Complete(bg)
	}

	elapsed := time.Since(runStart)
	p.metrics.RunDuration.Observe(elapsed.Seconds())

	logger.Info("run_finished",
		slog.String("status", string(status)),
		slog.Int("files_found", summary.FilesFound),
		slog.Int("files_processed", summary.FilesProcessed),
		slog.Int("files_failed", summary.FilesFailed),
		slog.Int("elements", summary.ElementsExtracted),
		slog.Duration("elapsed", elapsed))

	return &IngestionResponse{
		RunID:               runID,
		Status:              status,
		FileResults:         results,
		Summary:             summary,
		EmbeddingsGenerated: summary.EmbeddingsGenerated,
		StoreWrites:         summary.StoreWrites,
		Elapsed:             elapsed,
	}, nil
}

// terminalStatus maps run outcomes to the three terminal states.
func terminalStatus(waitErr error, total int, summary report.Summary) Status {
	switch {
	case waitErr != nil:
		return StatusFailed
	case total == 0:
		return StatusCompleted
	case summary.FilesFailed == 0:
		return StatusCompleted
	case summary.FilesProcessed > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// processFile runs the extract/embed/store stages for one file. It
// never returns an error; failures become the file's result.
func (p *Pipeline) processFile(ctx context.Context, rs *runState, req IngestionRequest, f discover.File, runID string) (FileResult, []extract.Element) {
	start := time.Now()
	res := FileResult{RelPath: f.RelPath, Size: f.Size, Status: FilePending}

	fail := func(err error) (FileResult, []extract.Element) {
		res.Status = FileFailed
		res.ErrorMessage = err.Error()
		res.Duration = time.Since(start)
		return res, nil
	}

	if f.Oversized {
		return fail(ierr.SizeLimitExceeded(f.RelPath, f.Size, req.MaxFileSize))
	}

	fileCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	// Deadline and run-cancellation both surface as fileCtx errors; only
	// the former is the file's own timeout.
	ctxFail := func() (FileResult, []extract.Element) {
		if errors.Is(fileCtx.Err(), context.DeadlineExceeded) {
			return fail(ierr.TimeoutError(f.RelPath, fileCtx.Err()))
		}
		return fail(ierr.InternalError(
			fmt.Sprintf("processing %s aborted", f.RelPath), fileCtx.Err()))
	}

	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return fail(ierr.New(ierr.ErrCodeFileUnreadable,
			fmt.Sprintf("failed to read %s", f.RelPath), err))
	}

	elements, err := p.extractor.Extract(fileCtx, content, f.RelPath)
	if err != nil {
		if fileCtx.Err() != nil {
			return ctxFail()
		}
		return fail(err)
	}
	res.ElementsExtracted = len(elements)
	p.metrics.ElementsExtracted.Add(float64(len(elements)))

	for i := range elements {
		elements[i].Tags = req.Tags
	}

	var embedFailures int
	vectors := make([]*embed.Vector, len(elements))
	if req.GenerateEmbeddings && len(elements) > 0 {
		inputs := make([]embed.Input, len(elements))
		for i, el := range elements {
			kind := embed.ContentDocumentation
			if el.Kind.IsCode() {
				kind = embed.ContentCode
			}
			inputs[i] = embed.Input{Text: extract.SearchableText(el), Kind: kind}
		}

		embedResults := p.embedder.EmbedMany(fileCtx, inputs)
		if fileCtx.Err() != nil {
			return ctxFail()
		}

		for i, r := range embedResults {
			if r.Err != nil {
				embedFailures++
				p.metrics.EmbeddingErrors.Inc()
				continue
			}
			vectors[i] = &embed.Vector{Values: r.Vector, Model: r.Model}
			res.EmbeddingsGenerated++
			if rs.markSeen(elements[i].ContentHash) {
				p.metrics.EmbeddingsDeduped.Inc()
			} else {
				p.metrics.EmbeddingsComputed.Inc()
			}
		}
	}

	var storeFailures int
	if req.StoreResults {
		for i, el := range elements {
			rec := memstore.ElementRecord{
				RunID:         runID,
				Tier:          memstore.TierForCode(el.Kind.IsCode()),
				Kind:          string(el.Kind),
				Name:          el.Name,
				QualifiedName: el.QualifiedName,
				FilePath:      el.FilePath,
				StartLine:     el.StartLine,
				EndLine:       el.EndLine,
				Complexity:    el.Complexity,
				Dependencies:  el.Dependencies,
				Decorators:    el.Decorators,
				Tags:          el.Tags,
				ContentHash:   el.ContentHash,
				Content:       extract.SearchableText(el),
			}
			if err := p.store.Store(fileCtx, rec, vectors[i]); err != nil {
				if fileCtx.Err() != nil {
					return ctxFail()
				}
				storeFailures++
				p.metrics.StoreErrors.Inc()
				continue
			}
			res.StoreWrites++
			p.metrics.StoreWrites.Inc()
		}
	}

	res.Status = FileCompleted
	var notes []string
	if embedFailures > 0 {
		notes = append(notes, fmt.Sprintf("%d embeddings failed", embedFailures))
	}
	if storeFailures > 0 {
		notes = append(notes, fmt.Sprintf("%d store writes failed", storeFailures))
	}
	res.ErrorMessage = strings.Join(notes, "; ")
	res.Duration = time.Since(start)
	return res, elements
}
