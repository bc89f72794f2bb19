package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codemem/repoingest/internal/config"
	"github.com/codemem/repoingest/internal/discover"
	"github.com/codemem/repoingest/internal/embed"
	"github.com/codemem/repoingest/internal/extract"
	"github.com/codemem/repoingest/internal/memstore"
	"github.com/codemem/repoingest/internal/metrics"
	"github.com/codemem/repoingest/internal/pipeline"
	"github.com/codemem/repoingest/internal/progress"
	"github.com/codemem/repoingest/internal/ui"
)

type ingestOptions struct {
	noEmbeddings bool
	noStore      bool
	noGitignore  bool
	tags         []string
	include      []string
	exclude      []string
	workers      int
	maxFiles     int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest a repository into the memory store",
		Long: `Ingest discovers source files under the given path, extracts
functions, classes and methods, generates embeddings and writes the
results to the configured memory store.

Progress is printed as the run advances and persisted to the data
directory, so 'repoingest progress <run-id>' can replay it later.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIngest(ctx, cmd, path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noEmbeddings, "no-embeddings", false, "Skip embedding generation")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Skip memory store writes (dry run)")
	cmd.Flags().BoolVar(&opts.noGitignore, "no-gitignore", false, "Ignore .gitignore rules during discovery")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Tag stamped onto every extracted element (repeatable)")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Include pattern, overrides configured includes (repeatable)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Extra exclude pattern (repeatable)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent file workers (default: from config)")
	cmd.Flags().IntVar(&opts.maxFiles, "max-files", 0, "Cap the number of files ingested (default: from config)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, path string, opts ingestOptions) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	dataDir := cfg.Pipeline.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}

	logger := slog.Default()
	renderer := ui.NewRenderer(ui.Config{Output: cmd.OutOrStdout(), NoColor: noColor})

	progSQL, err := progress.NewSQLiteStore(filepath.Join(dataDir, "progress.db"))
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}
	defer func() { _ = progSQL.Close() }()
	progStore := ui.NewTeeStore(progSQL, renderer)

	var embedder pipeline.Embedder
	if !opts.noEmbeddings {
		orch, err := buildEmbedder(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = orch.Close() }()
		embedder = orch
	}

	var store memstore.Client
	if !opts.noStore {
		store, err = buildStore(cfg, dataDir)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	p, err := pipeline.New(pipeline.Deps{
		Discoverer: discover.New(logger),
		Extractor:  extract.NewPythonExtractor(),
		Embedder:   embedder,
		Store:      store,
		Progress:   progStore,
		Metrics:    metrics.New(nil),
		Logger:     logger,
		DataDir:    dataDir,
		ProgressOptions: progress.Options{
			FileStride:    cfg.Progress.FileStride,
			PercentStride: cfg.Progress.PercentStride,
		},
	})
	if err != nil {
		return err
	}

	req := pipeline.IngestionRequest{
		RootPath:           absPath,
		IncludePatterns:    cfg.Discovery.Include,
		ExcludePatterns:    cfg.Discovery.Exclude,
		MaxFileSize:        cfg.Discovery.MaxFileSize,
		MaxFiles:           cfg.Discovery.MaxFiles,
		RespectGitignore:   !opts.noGitignore,
		GenerateEmbeddings: !opts.noEmbeddings,
		StoreResults:       !opts.noStore,
		Tags:               opts.tags,
		Timeout:            cfg.Pipeline.FileTimeoutDuration(),
		Concurrency:        cfg.Pipeline.Workers,
	}
	if len(opts.include) > 0 {
		req.IncludePatterns = opts.include
	}
	req.ExcludePatterns = append(req.ExcludePatterns, opts.exclude...)
	if opts.workers > 0 {
		req.Concurrency = opts.workers
	}
	if opts.maxFiles > 0 {
		req.MaxFiles = opts.maxFiles
	}

	resp, err := p.Run(ctx, req)
	if err != nil {
		renderer.Error(err)
		return err
	}

	renderer.Summary(resp)
	if resp.Status == pipeline.StatusFailed {
		return fmt.Errorf("run %s failed", resp.RunID)
	}
	return nil
}

// buildEmbedder wires the configured embedding backends into an
// orchestrator: one backend per distinct model, each behind an LRU cache.
func buildEmbedder(cfg *config.Config, logger *slog.Logger) (*embed.Orchestrator, error) {
	ec := cfg.Embeddings

	backends := make(map[string]embed.Backend)
	models := map[embed.ContentKind]string{}
	fallback := ec.FallbackModel

	switch strings.ToLower(ec.Provider) {
	case "static":
		static := embed.NewStaticBackend()
		name := static.ModelName()
		backends[name] = wrapCache(static, ec.CacheSize)
		for _, kind := range []embed.ContentKind{
			embed.ContentCode, embed.ContentText,
			embed.ContentDocumentation, embed.ContentGeneric,
		} {
			models[kind] = name
		}
		fallback = name

	case "http":
		apiKey := os.Getenv("REPOINGEST_API_KEY")
		for _, model := range []string{ec.CodeModel, ec.TextModel, ec.FallbackModel} {
			if model == "" {
				continue
			}
			if _, ok := backends[model]; ok {
				continue
			}
			backend, err := embed.NewHTTPBackend(embed.HTTPConfig{
				Endpoint: ec.Endpoint,
				Model:    model,
				APIKey:   apiKey,
				Timeout:  ec.TimeoutDuration(),
			})
			if err != nil {
				return nil, err
			}
			backends[model] = wrapCache(backend, ec.CacheSize)
		}
		models[embed.ContentCode] = ec.CodeModel
		models[embed.ContentText] = ec.TextModel
		models[embed.ContentDocumentation] = ec.TextModel
		models[embed.ContentGeneric] = ec.FallbackModel

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", ec.Provider)
	}

	retry := embed.DefaultRetryConfig()
	if ec.MaxRetries > 0 {
		retry.MaxRetries = ec.MaxRetries
	}

	return embed.NewOrchestrator(embed.OrchestratorConfig{
		Backends:      backends,
		Models:        models,
		FallbackModel: fallback,
		BatchSize:     ec.BatchSize,
		Retry:         retry,
		Logger:        logger,
	})
}

// wrapCache wraps a backend in the LRU cache unless caching is disabled.
func wrapCache(backend embed.Backend, cacheSize int) embed.Backend {
	if cacheSize <= 0 {
		return backend
	}
	return embed.NewCachedBackend(backend, cacheSize)
}

// buildStore wires the configured memory store client.
func buildStore(cfg *config.Config, dataDir string) (memstore.Client, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "http":
		return memstore.NewHTTPClient(memstore.HTTPConfig{
			Endpoint: cfg.Store.Endpoint,
			APIKey:   os.Getenv("REPOINGEST_STORE_API_KEY"),
			Timeout:  cfg.Store.TimeoutDuration(),
		})
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(dataDir, "elements.db")
		}
		return memstore.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
