package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, newVersionCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "repoingest")
	assert.Contains(t, out, "commit")
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
}

func TestInitCmd_WritesConfig(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, newInitCmd(), dir)
	require.NoError(t, err)
	assert.Contains(t, out, ".repoingest.yaml")

	data, err := os.ReadFile(filepath.Join(dir, ".repoingest.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "embeddings:")
	assert.Contains(t, string(data), "discovery:")
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, newInitCmd(), dir)
	require.NoError(t, err)

	_, err = execute(t, newInitCmd(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, newInitCmd(), "--force", dir)
	assert.NoError(t, err)
}

func TestProgressCmd_UnknownRun(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = execute(t, newProgressCmd(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no progress recorded")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "progress", "init", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
