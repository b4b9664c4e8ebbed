package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/record"
	"github.com/forkline/forkline/internal/redact"
	"github.com/forkline/forkline/internal/store"
	"github.com/forkline/forkline/internal/value"
)

func TestRunsCommand_ListsRecordedRuns(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	policy, err := redact.DebugPolicy()
	require.NoError(t, err)
	rec := record.New(st, policy, record.NewFixedGenerator("run-x"), record.WallClock{})
	ctx := context.Background()
	envFP, err := value.New(map[string]any{"os": "linux"})
	require.NoError(t, err)
	runID, err := rec.StartRun(ctx, "demo.workflow", "1.0", envFP)
	require.NoError(t, err)
	require.NoError(t, rec.EndRun(ctx, runID, model.StatusSuccess))
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), runID)
	assert.Contains(t, buf.String(), "demo.workflow")
}

func TestRunsCommand_EmptyStoreListsNothing(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, buf.String())
}

func TestRunsCommand_JSONFormat(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "[]")
}

func TestRunsCommand_RequiresDBFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
