// Package config loads and validates repoingest configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete repoingest configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline"`
	Progress   ProgressConfig   `yaml:"progress" json:"progress"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// DiscoveryConfig configures which files are discovered.
type DiscoveryConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// MaxFileSize is the per-file size ceiling in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// MaxFiles caps the number of files discovered in a single run.
	MaxFiles int `yaml:"max_files" json:"max_files"`
}

// EmbeddingsConfig configures the embedding backend and model selection.
type EmbeddingsConfig struct {
	// Provider selects the backend: "http" (OpenAI-compatible API) or
	// "static" (deterministic offline embeddings).
	Provider string `yaml:"provider" json:"provider"`

	// Endpoint is the base URL of the OpenAI-compatible embeddings API.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// CodeModel embeds source code content.
	CodeModel string `yaml:"code_model" json:"code_model"`
	// TextModel embeds prose and documentation content.
	TextModel string `yaml:"text_model" json:"text_model"`
	// FallbackModel is used when no kind-specific model matches.
	FallbackModel string `yaml:"fallback_model" json:"fallback_model"`

	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
	Timeout    string `yaml:"timeout" json:"timeout"`

	// CacheSize is the LRU cache capacity for the cached backend wrapper.
	// 0 disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// StoreConfig configures the memory store destination.
type StoreConfig struct {
	// Backend selects the store: "http" (memory service) or "sqlite" (local).
	Backend string `yaml:"backend" json:"backend"`

	// Endpoint is the memory service base URL (http backend).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Path is the SQLite database path (sqlite backend).
	// Empty uses <data_dir>/elements.db.
	Path string `yaml:"path" json:"path"`

	Timeout string `yaml:"timeout" json:"timeout"`
}

// PipelineConfig tunes concurrency and per-file limits.
type PipelineConfig struct {
	// Workers bounds the number of files processed concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// FileTimeout caps the processing time of a single file (e.g. "30s").
	FileTimeout string `yaml:"file_timeout" json:"file_timeout"`

	// DataDir holds run state: progress log, run lock, local store.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// ProgressConfig tunes progress log emission.
type ProgressConfig struct {
	// FileStride emits a progress entry every N processed files.
	FileStride int `yaml:"file_stride" json:"file_stride"`

	// PercentStride emits a progress entry every N percent of progress.
	PercentStride float64 `yaml:"percent_stride" json:"percent_stride"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// defaultExcludePatterns are always excluded.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.venv/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/go.sum",
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Discovery: DiscoveryConfig{
			Include:     []string{"**/*.py"},
			Exclude:     defaultExcludePatterns,
			MaxFileSize: 1 << 20, // 1MB
			MaxFiles:    100000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "http",
			Endpoint:      "http://localhost:1234",
			CodeModel:     "nomic-embed-code-v1",
			TextModel:     "nomic-embed-text-v1.5",
			FallbackModel: "text-embedding-3-small",
			BatchSize:     32,
			MaxRetries:    3,
			Timeout:       "60s",
			CacheSize:     1000,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Timeout: "10s",
		},
		Pipeline: PipelineConfig{
			Workers:     runtime.NumCPU(),
			FileTimeout: "30s",
			DataDir:     ".repoingest",
		},
		Progress: ProgressConfig{
			FileStride:    10,
			PercentStride: 5.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.repoingest.yaml in project root)
//  3. Environment variables (REPOINGEST_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .repoingest.yaml or .repoingest.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".repoingest.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".repoingest.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Discovery.Include) > 0 {
		c.Discovery.Include = other.Discovery.Include
	}
	if len(other.Discovery.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Discovery.Exclude = append(c.Discovery.Exclude, other.Discovery.Exclude...)
	}
	if other.Discovery.MaxFileSize != 0 {
		c.Discovery.MaxFileSize = other.Discovery.MaxFileSize
	}
	if other.Discovery.MaxFiles != 0 {
		c.Discovery.MaxFiles = other.Discovery.MaxFiles
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.CodeModel != "" {
		c.Embeddings.CodeModel = other.Embeddings.CodeModel
	}
	if other.Embeddings.TextModel != "" {
		c.Embeddings.TextModel = other.Embeddings.TextModel
	}
	if other.Embeddings.FallbackModel != "" {
		c.Embeddings.FallbackModel = other.Embeddings.FallbackModel
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}
	if other.Embeddings.Timeout != "" {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.Endpoint != "" {
		c.Store.Endpoint = other.Store.Endpoint
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Timeout != "" {
		c.Store.Timeout = other.Store.Timeout
	}

	if other.Pipeline.Workers != 0 {
		c.Pipeline.Workers = other.Pipeline.Workers
	}
	if other.Pipeline.FileTimeout != "" {
		c.Pipeline.FileTimeout = other.Pipeline.FileTimeout
	}
	if other.Pipeline.DataDir != "" {
		c.Pipeline.DataDir = other.Pipeline.DataDir
	}

	if other.Progress.FileStride != 0 {
		c.Progress.FileStride = other.Progress.FileStride
	}
	if other.Progress.PercentStride != 0 {
		c.Progress.PercentStride = other.Progress.PercentStride
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies REPOINGEST_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REPOINGEST_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("REPOINGEST_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("REPOINGEST_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("REPOINGEST_STORE_ENDPOINT"); v != "" {
		c.Store.Endpoint = v
	}
	if v := os.Getenv("REPOINGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("REPOINGEST_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Discovery.MaxFileSize = n
		}
	}
	if v := os.Getenv("REPOINGEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// FindProjectRoot finds the project root directory.
// It looks for a .git directory or .repoingest.yaml/.yml file by walking
// up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".repoingest.yaml")) ||
			fileExists(filepath.Join(currentDir, ".repoingest.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Discovery.MaxFileSize <= 0 {
		return fmt.Errorf("discovery.max_file_size must be positive, got %d", c.Discovery.MaxFileSize)
	}
	if c.Discovery.MaxFiles < 0 {
		return fmt.Errorf("discovery.max_files must be non-negative, got %d", c.Discovery.MaxFiles)
	}

	validProviders := map[string]bool{"http": true, "static": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'http' or 'static', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}

	validBackends := map[string]bool{"http": true, "sqlite": true}
	if !validBackends[strings.ToLower(c.Store.Backend)] {
		return fmt.Errorf("store.backend must be 'http' or 'sqlite', got %s", c.Store.Backend)
	}
	if strings.ToLower(c.Store.Backend) == "http" && c.Store.Endpoint == "" {
		return fmt.Errorf("store.endpoint is required for the http backend")
	}

	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	durations := map[string]string{
		"embeddings.timeout":    c.Embeddings.Timeout,
		"store.timeout":         c.Store.Timeout,
		"pipeline.file_timeout": c.Pipeline.FileTimeout,
	}
	for field, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s is not a valid duration: %q", field, value)
		}
	}

	return nil
}

// parseDuration parses a duration string, falling back to def when the
// string is empty or malformed.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// TimeoutDuration returns the embedding request timeout.
func (c EmbeddingsConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// TimeoutDuration returns the store request timeout.
func (c StoreConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// FileTimeoutDuration returns the per-file processing timeout.
func (c PipelineConfig) FileTimeoutDuration() time.Duration {
	return parseDuration(c.FileTimeout, 30*time.Second)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
