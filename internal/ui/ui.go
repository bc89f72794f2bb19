// Package ui renders ingestion progress and run summaries for the CLI.
package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Config controls renderer output.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// NewRenderer picks styling based on config and environment: color for
// interactive terminals, plain text for pipes, CI and NO_COLOR.
func NewRenderer(cfg Config) *Renderer {
	noColor := cfg.NoColor || DetectNoColor() || DetectCI() || !IsTTY(cfg.Output)
	return &Renderer{
		out:    cfg.Output,
		styles: GetStyles(noColor),
	}
}
