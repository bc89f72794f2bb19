package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codemem/repoingest/internal/config"
	"github.com/codemem/repoingest/internal/progress"
	"github.com/codemem/repoingest/internal/ui"
)

func newProgressCmd() *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "progress <run-id>",
		Short: "Show the progress log of an ingestion run",
		Long: `Progress replays the persisted progress log of a run.

With --latest only the newest entry is shown, which is useful for
polling a run that is still in flight.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(cmd, args[0], latest)
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "Show only the newest entry")

	return cmd
}

func runProgress(cmd *cobra.Command, runID string, latest bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	dataDir := cfg.Pipeline.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(root, dataDir)
	}

	store, err := progress.NewSQLiteStore(filepath.Join(dataDir, "progress.db"))
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}
	defer func() { _ = store.Close() }()

	renderer := ui.NewRenderer(ui.Config{Output: cmd.OutOrStdout(), NoColor: noColor})
	ctx := cmd.Context()

	if latest {
		entry, err := store.Latest(ctx, runID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("no progress recorded for run %s", runID)
		}
		renderer.Progress(*entry)
		return nil
	}

	entries, err := store.Entries(ctx, runID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no progress recorded for run %s", runID)
	}
	for _, entry := range entries {
		renderer.Progress(entry)
	}
	return nil
}
