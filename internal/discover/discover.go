// Package discover finds candidate files for an ingestion run.
package discover

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ierr "github.com/codemem/repoingest/internal/errors"
	"github.com/codemem/repoingest/internal/gitignore"
)

// Discoverer walks a repository tree and applies include/exclude filters.
type Discoverer struct {
	logger *slog.Logger
}

// New creates a Discoverer. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{logger: logger}
}

// Discover walks the root directory and returns matching files ordered
// lexicographically by relative path. The same tree and options always
// produce the same result.
//
// A missing or non-directory root is the only fatal error. An empty result
// is not an error.
func (d *Discoverer) Discover(ctx context.Context, opts Options) ([]File, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, ierr.PathNotFound(rootDir, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, ierr.PathNotFound(absRoot, err)
	}
	if !info.IsDir() {
		return nil, ierr.PathNotFound(absRoot, nil)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	var ignore *gitignore.Matcher
	if opts.RespectGitignore {
		ignore = gitignore.New()
		d.loadGitignore(ignore, filepath.Join(absRoot, ".gitignore"), "")
	}

	var files []File
	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we cannot access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if entry.IsDir() {
			if d.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			if ignore != nil {
				if ignore.Match(relPath, true) {
					return filepath.SkipDir
				}
				// Nested .gitignore files scope their rules to this directory.
				d.loadGitignore(ignore, filepath.Join(path, ".gitignore"), relPath)
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		// Exclusion wins over inclusion.
		if d.shouldExcludeFile(relPath, opts) {
			return nil
		}
		if ignore != nil && ignore.Match(relPath, false) {
			return nil
		}
		if len(opts.IncludePatterns) > 0 && !matchesAnyPattern(relPath, opts.IncludePatterns) {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			return nil
		}

		if fi.Size() == 0 {
			return nil
		}

		files = append(files, File{
			AbsPath:   path,
			RelPath:   relPath,
			Size:      fi.Size(),
			Oversized: fi.Size() > maxFileSize,
		})
		return nil
	})
	if walkErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ierr.Wrap(ierr.ErrCodeInternal, walkErr)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})

	if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
		d.logger.Warn("discovery_truncated",
			slog.Int("found", len(files)),
			slog.Int("max_files", opts.MaxFiles))
		files = files[:opts.MaxFiles]
	}

	d.logger.Debug("discovery_complete",
		slog.String("root", absRoot),
		slog.Int("files", len(files)))

	return files, nil
}

// loadGitignore merges a .gitignore file into the matcher if it exists.
func (d *Discoverer) loadGitignore(m *gitignore.Matcher, path, base string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := m.AddFromFile(path, base); err != nil {
		d.logger.Warn("gitignore_load_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// shouldExcludeDir checks if a directory should be excluded.
func (d *Discoverer) shouldExcludeDir(relPath string, opts Options) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// shouldExcludeFile checks if a file should be excluded.
func (d *Discoverer) shouldExcludeFile(relPath string, opts Options) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return false
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(relPath, pattern string) bool {
	// **/dir/** patterns match the component anywhere in the path
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		for _, part := range strings.Split(relPath, "/") {
			if part == suffix {
				return true
			}
		}
		return false
	}

	// dir/** patterns match the directory itself or anything under it
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+"/")
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	// dir/** patterns
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+"/")
	}

	// dir/**/glob patterns: anchored prefix, any depth, filename glob
	if i := strings.Index(pattern, "/**/"); i >= 0 && !strings.HasPrefix(pattern, "**/") {
		prefix := pattern[:i]
		glob := pattern[i+4:]
		if !strings.HasPrefix(relPath, prefix+"/") {
			return false
		}
		matched, err := filepath.Match(glob, baseName)
		return err == nil && matched
	}

	// dir/prefix*.ext patterns with a directory component and a filename glob
	if strings.Contains(pattern, "/") && strings.Contains(pattern, "*") && !strings.HasPrefix(pattern, "**/") {
		dir := filepath.ToSlash(filepath.Dir(pattern))
		filePattern := filepath.Base(pattern)
		relDir := filepath.ToSlash(filepath.Dir(relPath))

		if relDir == dir {
			matched, err := filepath.Match(filePattern, baseName)
			return err == nil && matched
		}
		return false
	}

	// **/ prefix patterns
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			// Extension pattern like **/*.min.js
			ext := strings.TrimPrefix(suffix, "*")
			return strings.HasSuffix(baseName, ext)
		}
		if strings.Contains(suffix, "*") {
			matched, err := filepath.Match(suffix, baseName)
			return err == nil && matched
		}
		// Path component pattern
		for _, part := range strings.Split(relPath, "/") {
			if part == suffix {
				return true
			}
		}
		return false
	}

	// *pattern* (contains)
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1 {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}

	// .env* style prefix patterns
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, ".") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(baseName, prefix)
	}

	// *pattern (suffix)
	if strings.HasPrefix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(baseName, suffix)
	}

	// pattern* (prefix)
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(baseName, prefix)
	}

	return baseName == pattern
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(relPath string, patterns []string) bool {
	baseName := filepath.Base(relPath)
	for _, pattern := range patterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}
	return false
}
