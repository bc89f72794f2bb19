package discover

// DefaultMaxFileSize is the per-file size ceiling when none is configured.
const DefaultMaxFileSize = 1 << 20 // 1MB

// File is a discovered repository file.
// Discovery is stat-only: contents are never read here.
type File struct {
	// AbsPath is the absolute filesystem path.
	AbsPath string

	// RelPath is the path relative to the scan root, using forward slashes.
	// Results are ordered lexicographically by this field.
	RelPath string

	// Size is the file size in bytes.
	Size int64

	// Oversized marks files above the size ceiling. They are kept in the
	// result set so downstream stages can record them as failed instead of
	// silently dropping them.
	Oversized bool
}

// Options controls a discovery pass.
type Options struct {
	// RootDir is the directory to scan. Must exist and be a directory.
	RootDir string

	// IncludePatterns restricts results to files matching any pattern.
	// Empty means include everything not excluded.
	IncludePatterns []string

	// ExcludePatterns removes files matching any pattern.
	// Exclusion wins over inclusion.
	ExcludePatterns []string

	// MaxFileSize is the size ceiling in bytes (default: DefaultMaxFileSize).
	MaxFileSize int64

	// MaxFiles caps the number of files returned (0 = no cap).
	// The cap is applied after ordering, so it is deterministic.
	MaxFiles int

	// FollowSymlinks enables traversal of symlinked files.
	FollowSymlinks bool

	// RespectGitignore applies .gitignore rules found in the tree,
	// including nested files scoped to their directory.
	RespectGitignore bool
}

// Default directories to exclude.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/dist/**",
	"**/build/**",
	"**/.aws/**",
	"**/.gcp/**",
	"**/.azure/**",
	"**/.ssh/**",
}

// Default files to exclude.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// Sensitive file patterns that are never ingested.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
