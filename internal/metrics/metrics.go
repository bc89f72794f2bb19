// Package metrics exposes Prometheus instrumentation for ingestion runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms the pipeline records.
// Constructed per process and injected; nothing here is global.
type Metrics struct {
	FilesDiscovered prometheus.Counter
	FilesProcessed  prometheus.Counter
	FilesFailed     prometheus.Counter

	ElementsExtracted  prometheus.Counter
	EmbeddingsComputed prometheus.Counter
	EmbeddingsDeduped  prometheus.Counter
	EmbeddingErrors    prometheus.Counter
	StoreWrites        prometheus.Counter
	StoreErrors        prometheus.Counter

	DiscoveryDuration prometheus.Histogram
	FileDuration      prometheus.Histogram
	RunDuration       prometheus.Histogram
}

// New creates the metric set and registers it with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := build()
	reg.MustRegister(
		m.FilesDiscovered, m.FilesProcessed, m.FilesFailed,
		m.ElementsExtracted,
		m.EmbeddingsComputed, m.EmbeddingsDeduped, m.EmbeddingErrors,
		m.StoreWrites, m.StoreErrors,
		m.DiscoveryDuration, m.FileDuration, m.RunDuration,
	)
	return m
}

// NewUnregistered creates the metric set without registering it.
// Useful for tests and for callers that disabled metrics export.
func NewUnregistered() *Metrics {
	return build()
}

func build() *Metrics {
	buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

	return &Metrics{
		FilesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_files_discovered_total",
			Help: "Files selected by discovery",
		}),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_files_processed_total",
			Help: "Files processed successfully",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_files_failed_total",
			Help: "Files that failed processing",
		}),
		ElementsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_elements_extracted_total",
			Help: "Code elements extracted",
		}),
		EmbeddingsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_embeddings_computed_total",
			Help: "Embeddings computed by a backend",
		}),
		EmbeddingsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_embeddings_deduped_total",
			Help: "Embeddings served from the per-run dedup cache",
		}),
		EmbeddingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_embedding_errors_total",
			Help: "Embedding failures after retries",
		}),
		StoreWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_store_writes_total",
			Help: "Records written to the memory store",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "repoingest_store_errors_total",
			Help: "Memory store write failures",
		}),
		DiscoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "repoingest_discovery_seconds",
			Help:    "Duration of the discovery stage",
			Buckets: buckets,
		}),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "repoingest_file_seconds",
			Help:    "Per-file processing duration",
			Buckets: buckets,
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "repoingest_run_seconds",
			Help:    "Total run duration",
			Buckets: buckets,
		}),
	}
}
