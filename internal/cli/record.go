package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/forkline/forkline/internal/envfp"
	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/record"
	"github.com/forkline/forkline/internal/redact"
	"github.com/forkline/forkline/internal/store"
	"github.com/forkline/forkline/internal/value"
)

// RecordOptions holds the flags for `forkline record demo`.
type RecordOptions struct {
	*RootOptions
	Database   string
	Entrypoint string
	Mode       string
	PolicyFile string
	Recipient  string
}

// NewRecordCommand builds `forkline record demo` and `forkline record
// keygen`. demo exercises the full Record interface (start_run,
// log_event, end_run) against a real store, at any of the SAFE/DEBUG/
// ENCRYPTED_DEBUG escalation modes, so a new database can be populated
// without writing a client program first; keygen produces the age
// keypair encrypted_debug mode needs.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record runs into the store",
	}

	demo := &cobra.Command{
		Use:   "demo",
		Short: "Record a pair of closely related runs with a deliberate divergence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordDemo(cmd, opts)
		},
	}
	demo.Flags().StringVar(&opts.Entrypoint, "entrypoint", "demo.workflow", "entrypoint name attached to the recorded run")
	demo.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run store")
	demo.Flags().StringVar(&opts.Mode, "mode", "safe", "redaction escalation mode: safe, debug, or encrypted_debug")
	demo.Flags().StringVar(&opts.PolicyFile, "policy-file", "", "path to a CUE redaction policy document layered on top of --mode's base policy")
	demo.Flags().StringVar(&opts.Recipient, "recipient", "", "age recipient public key, required when --mode=encrypted_debug")
	_ = demo.MarkFlagRequired("db")
	cmd.AddCommand(demo)

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an age recipient keypair for --mode=encrypted_debug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordKeygen(cmd, opts)
		},
	}
	cmd.AddCommand(keygen)

	return cmd
}

func runRecordKeygen(cmd *cobra.Command, opts *RecordOptions) error {
	privateKey, publicKey, err := redact.GenerateRecipientKeypair()
	if err != nil {
		return WrapExitError(ExitOperationErr, "generating recipient keypair", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(map[string]string{"private_key": privateKey, "public_key": publicKey})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "private key (keep secret, never commit): %s\npublic key (pass to --recipient):        %s\n",
		privateKey, publicKey)
	return nil
}

// buildRecordPolicy selects mode's base policy and, if policyFile is
// set, layers a CUE-validated custom document on top of it via
// LoadPolicyCUE.
func buildRecordPolicy(mode, policyFile string) (*redact.Policy, error) {
	var base *redact.Policy
	var err error
	switch mode {
	case "", "safe":
		base, err = redact.SafePolicy()
	case "debug":
		base, err = redact.DebugPolicy()
	case "encrypted_debug":
		base, err = redact.EncryptedDebugPolicy()
	default:
		return nil, fmt.Errorf("unknown --mode %q (want safe, debug, or encrypted_debug)", mode)
	}
	if err != nil {
		return nil, err
	}
	if policyFile == "" {
		return base, nil
	}

	src, err := os.ReadFile(policyFile)
	if err != nil {
		return nil, fmt.Errorf("reading --policy-file: %w", err)
	}
	return redact.LoadPolicyCUE(string(src), base)
}

func runRecordDemo(cmd *cobra.Command, opts *RecordOptions) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitOperationErr, "opening store", err)
	}
	defer st.Close()

	policy, err := buildRecordPolicy(opts.Mode, opts.PolicyFile)
	if err != nil {
		return WrapExitError(ExitOperationErr, "building redaction policy", err)
	}

	rec := record.New(st, policy, record.UUIDv7Generator{}, record.WallClock{})
	if opts.Mode == "encrypted_debug" {
		if opts.Recipient == "" {
			return NewExitError(ExitOperationErr, "--recipient is required when --mode=encrypted_debug")
		}
		rec = rec.Seal(opts.Recipient)
	}

	ctx := context.Background()
	snap := envfp.Capture(nil)
	fp, err := snap.Value()
	if err != nil {
		return WrapExitError(ExitOperationErr, "capturing environment fingerprint", err)
	}

	runAID, err := recordDemoRun(ctx, rec, opts.Entrypoint, fp, "a small JSON payload from example.com")
	if err != nil {
		return WrapExitError(ExitOperationErr, "recording run_a", err)
	}
	slog.Info("recorded run", "run_id", runAID)

	runBID, err := recordDemoRun(ctx, rec, opts.Entrypoint, fp, "a different summary of the same payload")
	if err != nil {
		return WrapExitError(ExitOperationErr, "recording run_b", err)
	}
	slog.Info("recorded run", "run_id", runBID)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(map[string]string{"run_a": runAID, "run_b": runBID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recorded run_a %s\nrecorded run_b %s\nforkline diff --db %s --first %s %s\n",
		runAID, runBID, opts.Database, runAID, runBID)
	return nil
}

// recordDemoRun records a two-step fetch/summarize run, with summary
// as the final step's output so callers can produce two runs that
// diverge only in that one payload.
func recordDemoRun(ctx context.Context, rec *record.Recorder, entrypoint string, envFingerprint value.Value, summary string) (string, error) {
	runID, err := rec.StartRun(ctx, entrypoint, "1.0", envFingerprint)
	if err != nil {
		return "", err
	}

	fetchInput, err := value.New(map[string]any{"url": "https://example.com/data.json"})
	if err != nil {
		return "", err
	}
	fetchOutput, err := value.New(map[string]any{"status": int64(200), "bytes": int64(1024)})
	if err != nil {
		return "", err
	}
	fetch := rec.Step(runID, 0, "fetch")
	if err := fetch.LogEvent(ctx, model.EventInput, fetchInput); err != nil {
		return "", err
	}
	if err := fetch.LogEvent(ctx, model.EventOutput, fetchOutput); err != nil {
		return "", err
	}

	summarizeInput, err := value.New(map[string]any{"text": "example data payload"})
	if err != nil {
		return "", err
	}
	summarizeOutput, err := value.New(map[string]any{"summary": summary})
	if err != nil {
		return "", err
	}
	summarize := rec.Step(runID, 1, "summarize")
	if err := summarize.LogEvent(ctx, model.EventInput, summarizeInput); err != nil {
		return "", err
	}
	if err := summarize.LogEvent(ctx, model.EventOutput, summarizeOutput); err != nil {
		return "", err
	}

	if err := rec.EndRun(ctx, runID, model.StatusSuccess); err != nil {
		return "", err
	}
	return runID, nil
}
