package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/codemem/repoingest/internal/pipeline"
	"github.com/codemem/repoingest/internal/progress"
)

// Renderer writes plain text progress lines and run summaries.
// Safe for concurrent use.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// stageIcon is the short stage tag for progress lines.
func stageIcon(s progress.Stage) string {
	switch s {
	case progress.StageInitialized:
		return "INIT"
	case progress.StageDiscovering:
		return "SCAN"
	case progress.StageProcessing:
		return "INGEST"
	case progress.StageCompleted:
		return "DONE"
	case progress.StageFailed:
		return "FAIL"
	default:
		return "???"
	}
}

// Progress prints one progress log entry.
func (r *Renderer) Progress(entry progress.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	icon := stageIcon(entry.Stage)
	switch entry.Stage {
	case progress.StageProcessing:
		line := fmt.Sprintf("[%s] %d/%d (%.0f%%)", icon,
			entry.FilesProcessed, entry.TotalFiles, entry.Percentage)
		if entry.CurrentFile != "" {
			line += " - " + entry.CurrentFile
		}
		_, _ = fmt.Fprintln(r.out, line)
	case progress.StageFailed:
		msg := r.styles.Error.Render(fmt.Sprintf("[%s] %s", icon, entry.Error))
		_, _ = fmt.Fprintln(r.out, msg)
	default:
		_, _ = fmt.Fprintf(r.out, "[%s]\n", icon)
	}
}

// Error prints a run-fatal error.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, r.styles.Error.Render(fmt.Sprintf("Error: %v", err)))
}

// Summary prints the final run summary.
func (r *Renderer) Summary(resp *pipeline.IngestionResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := string(resp.Status)
	switch resp.Status {
	case pipeline.StatusCompleted:
		status = r.styles.Success.Render(status)
	case pipeline.StatusPartial:
		status = r.styles.Warning.Render(status)
	case pipeline.StatusFailed:
		status = r.styles.Error.Render(status)
	}

	s := resp.Summary
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, r.styles.Header.Render("Run "+resp.RunID))
	r.row("Status", status)
	r.row("Files", fmt.Sprintf("%d found, %d processed, %d failed",
		s.FilesFound, s.FilesProcessed, s.FilesFailed))
	r.row("Elements", fmt.Sprintf("%d", s.ElementsExtracted))
	if resp.EmbeddingsGenerated > 0 {
		r.row("Embeddings", fmt.Sprintf("%d", resp.EmbeddingsGenerated))
	}
	if resp.StoreWrites > 0 {
		r.row("Store writes", fmt.Sprintf("%d", resp.StoreWrites))
	}
	if s.AverageComplexity > 0 {
		r.row("Avg complexity", fmt.Sprintf("%.1f", s.AverageComplexity))
	}
	r.row("Elapsed", resp.Elapsed.Round(10*time.Millisecond).String())

	if len(s.TopLargest) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, r.styles.Header.Render("Largest files"))
		for _, f := range s.TopLargest {
			r.row(f.Path, formatBytes(f.Size))
		}
	}
	if len(s.TopComplex) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, r.styles.Header.Render("Most complex elements"))
		for _, e := range s.TopComplex {
			r.row(e.QualifiedName, fmt.Sprintf("%d (%s)", e.Complexity, e.FilePath))
		}
	}

	for _, fr := range resp.FileResults {
		if fr.Status == pipeline.FileFailed {
			_, _ = fmt.Fprintln(r.out, r.styles.Error.Render(
				fmt.Sprintf("failed: %s: %s", fr.RelPath, fr.ErrorMessage)))
		}
	}
}

// row prints a two-column label/value line.
func (r *Renderer) row(label, value string) {
	_, _ = fmt.Fprintf(r.out, "  %s %s\n",
		r.styles.Label.Render(fmt.Sprintf("%-16s", label)),
		r.styles.Value.Render(value))
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
