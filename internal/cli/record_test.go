package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline/internal/store"
)

func TestRecordDemoCommand_CreatesRunInStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRecordCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo", "--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "recorded run_a")
	assert.Contains(t, buf.String(), "recorded run_b")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	summaries, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, "demo.workflow", s.Entrypoint)
		assert.Equal(t, 2, s.StepCount)
	}
}

func TestRecordDemoCommand_CustomEntrypoint(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRecordCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo", "--db", dbPath, "--entrypoint", "custom.flow"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "run_a")
	assert.Contains(t, buf.String(), "run_b")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	summaries, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Equal(t, "custom.flow", s.Entrypoint)
	}
}

func TestRecordDemoCommand_RunsDivergeOnSummaryStep(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	recordBuf := &bytes.Buffer{}
	recordCmd := NewRecordCommand(&RootOptions{Format: "json"})
	recordCmd.SetOut(recordBuf)
	recordCmd.SetErr(recordBuf)
	recordCmd.SetArgs([]string{"demo", "--db", dbPath})
	require.NoError(t, recordCmd.Execute())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	summaries, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, summaries, 2)

	diffBuf := &bytes.Buffer{}
	diffCmd := NewDiffCommand(&RootOptions{Format: "text"})
	diffCmd.SetOut(diffBuf)
	diffCmd.SetErr(diffBuf)
	diffCmd.SetArgs([]string{"--db", dbPath, "--first", summaries[0].RunID, summaries[1].RunID})

	err = diffCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitDivergence, GetExitCode(err))
	assert.Contains(t, diffBuf.String(), "status: output_divergence")
}

func TestRecordDemoCommand_DebugModeSkipsRedaction(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	buf := &bytes.Buffer{}
	cmd := NewRecordCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo", "--db", dbPath, "--mode", "debug"})
	require.NoError(t, cmd.Execute())

	showBuf := &bytes.Buffer{}
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	summaries, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, summaries, 2)

	showCmd := NewShowCommand(&RootOptions{Format: "text"})
	showCmd.SetOut(showBuf)
	showCmd.SetErr(showBuf)
	showCmd.SetArgs([]string{"--db", dbPath, "--step", "0", summaries[0].RunID})
	require.NoError(t, showCmd.Execute())

	assert.Contains(t, showBuf.String(), "https://example.com/data.json", "DEBUG mode must persist raw payloads unmasked")
}

func TestRecordDemoCommand_EncryptedDebugMode_RoundTripsThroughShowWithPrivateKey(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	keygenBuf := &bytes.Buffer{}
	keygenCmd := NewRecordCommand(&RootOptions{Format: "json"})
	keygenCmd.SetOut(keygenBuf)
	keygenCmd.SetErr(keygenBuf)
	keygenCmd.SetArgs([]string{"keygen"})
	require.NoError(t, keygenCmd.Execute())

	var keys struct {
		PrivateKey string `json:"private_key"`
		PublicKey  string `json:"public_key"`
	}
	require.NoError(t, json.Unmarshal(keygenBuf.Bytes(), &keys))
	require.NotEmpty(t, keys.PrivateKey)
	require.NotEmpty(t, keys.PublicKey)

	recordBuf := &bytes.Buffer{}
	recordCmd := NewRecordCommand(&RootOptions{Format: "text"})
	recordCmd.SetOut(recordBuf)
	recordCmd.SetErr(recordBuf)
	recordCmd.SetArgs([]string{"demo", "--db", dbPath, "--mode", "encrypted_debug", "--recipient", keys.PublicKey})
	require.NoError(t, recordCmd.Execute())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	summaries, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, summaries, 2)

	sealedBuf := &bytes.Buffer{}
	sealedCmd := NewShowCommand(&RootOptions{Format: "text"})
	sealedCmd.SetOut(sealedBuf)
	sealedCmd.SetErr(sealedBuf)
	sealedCmd.SetArgs([]string{"--db", dbPath, "--step", "0", summaries[0].RunID})
	require.NoError(t, sealedCmd.Execute())
	assert.Contains(t, sealedBuf.String(), "[sealed: pass --private-key to decrypt]")
	assert.NotContains(t, sealedBuf.String(), "example.com")

	unsealedBuf := &bytes.Buffer{}
	unsealedCmd := NewShowCommand(&RootOptions{Format: "text"})
	unsealedCmd.SetOut(unsealedBuf)
	unsealedCmd.SetErr(unsealedBuf)
	unsealedCmd.SetArgs([]string{"--db", dbPath, "--step", "0", "--private-key", keys.PrivateKey, summaries[0].RunID})
	require.NoError(t, unsealedCmd.Execute())
	assert.Contains(t, unsealedBuf.String(), "example.com")
	assert.Contains(t, unsealedBuf.String(), "(unsealed)")
}

func TestRecordDemoCommand_EncryptedDebugMode_RequiresRecipient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	buf := &bytes.Buffer{}
	cmd := NewRecordCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo", "--db", dbPath, "--mode", "encrypted_debug"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitOperationErr, GetExitCode(err))
}

func TestRecordDemoCommand_PolicyFileLayersOnTopOfMode(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")
	policyPath := filepath.Join(tmpDir, "policy.cue")
	require.NoError(t, os.WriteFile(policyPath, []byte(`
rules: [{action: "DROP", key_pattern: "url"}]
exempt_keys: []
`), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewRecordCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo", "--db", dbPath, "--policy-file", policyPath})
	require.NoError(t, cmd.Execute())

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	summaries, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, summaries, 2)

	showBuf := &bytes.Buffer{}
	showCmd := NewShowCommand(&RootOptions{Format: "text"})
	showCmd.SetOut(showBuf)
	showCmd.SetErr(showBuf)
	showCmd.SetArgs([]string{"--db", dbPath, "--step", "0", summaries[0].RunID})
	require.NoError(t, showCmd.Execute())
	assert.NotContains(t, showBuf.String(), "example.com", "custom DROP rule on url should remove the key entirely")
}

func TestRecordDemoCommand_UnknownModeRejected(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "forkline.db")

	buf := &bytes.Buffer{}
	cmd := NewRecordCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo", "--db", dbPath, "--mode", "bogus"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitOperationErr, GetExitCode(err))
}

func TestRecordDemoCommand_RequiresDBFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRecordCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"demo"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
