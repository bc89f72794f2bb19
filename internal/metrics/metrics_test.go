package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.FilesDiscovered.Inc()
	m.FilesProcessed.Inc()
	m.EmbeddingsComputed.Add(3)
	m.RunDuration.Observe(1.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"repoingest_files_discovered_total",
		"repoingest_files_processed_total",
		"repoingest_files_failed_total",
		"repoingest_elements_extracted_total",
		"repoingest_embeddings_computed_total",
		"repoingest_embeddings_deduped_total",
		"repoingest_embedding_errors_total",
		"repoingest_store_writes_total",
		"repoingest_store_errors_total",
		"repoingest_discovery_seconds",
		"repoingest_file_seconds",
		"repoingest_run_seconds",
	} {
		assert.True(t, names[expected], "missing metric %s", expected)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EmbeddingsComputed))
}

func TestNewUnregistered_Usable(t *testing.T) {
	m := NewUnregistered()
	m.StoreWrites.Inc()
	m.StoreWrites.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreWrites))
}

func TestNew_SeparateRegistriesIndependent(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.FilesFailed.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.FilesFailed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FilesFailed))
}
