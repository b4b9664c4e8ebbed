package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forkline/forkline/internal/divergence"
	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/redact"
	"github.com/forkline/forkline/internal/store"
	"github.com/forkline/forkline/internal/value"
)

// ageArmorPrefix is the first line of every age-encrypted file,
// distinguishing a sealed ENCRYPTED_DEBUG event payload from an
// ordinary Bytes value.
const ageArmorPrefix = "age-encryption.org/v1"

// ShowOptions holds the flags for `forkline show`.
type ShowOptions struct {
	*RootOptions
	Database   string
	Step       int
	PrivateKey string
}

// NewShowCommand builds `forkline show <run_id> [--step N]`, a
// supplemented feature for inspecting a single recorded run without a
// comparison partner: its steps, per-step event counts, and content
// hashes, or with --step, one step's raw redacted events.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show the steps and hashes of a single recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run store")
	cmd.Flags().IntVar(&opts.Step, "step", -1, "show one step's raw events instead of the summary list")
	cmd.Flags().StringVar(&opts.PrivateKey, "private-key", "", "age private key to unseal ENCRYPTED_DEBUG event payloads (used with --step)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// runView is the shape `forkline show` renders: a Run's steps reduced
// to their fingerprints, since raw payloads may carry secrets the
// caller never asked to see unmasked.
type runView struct {
	RunID         string                   `json:"run_id"`
	SchemaVersion string                   `json:"schema_version"`
	Status        string                   `json:"status"`
	Steps         []divergence.StepSummary `json:"steps"`
}

func runShow(cmd *cobra.Command, opts *ShowOptions, runID string) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitOperationErr, "opening store", err)
	}
	defer st.Close()

	run, err := loadRunOrExit(context.Background(), st, runID)
	if err != nil {
		return err
	}
	if err := model.Validate(run); err != nil {
		return WrapExitError(ExitOperationErr, "run is corrupt", err)
	}

	if opts.Step >= 0 {
		return showStep(cmd, opts, run)
	}

	view, err := toRunView(run)
	if err != nil {
		return WrapExitError(ExitOperationErr, "hashing run", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(view)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s  schema=%s  status=%s\n", view.RunID, view.SchemaVersion, view.Status)
	for _, s := range view.Steps {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", formatStepSummary(s))
	}
	return nil
}

func showStep(cmd *cobra.Command, opts *ShowOptions, run model.Run) error {
	var step *model.Step
	for i := range run.Steps {
		if run.Steps[i].Idx == opts.Step {
			step = &run.Steps[i]
			break
		}
	}
	if step == nil {
		return NewExitError(ExitOperationErr, fmt.Sprintf("run %q has no step %d", run.RunID, opts.Step))
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(step)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "step %d %q (%d events)\n", step.Idx, step.Name, len(step.Events))
	for _, e := range step.Events {
		payload, sealed, err := unsealPayload(e.Payload, opts.PrivateKey)
		if err != nil {
			return WrapExitError(ExitOperationErr, "unsealing event payload", err)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return WrapExitError(ExitOperationErr, "rendering event payload", err)
		}
		if sealed {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%s] (unsealed) %s\n", e.Type, string(data))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s\n", e.Type, string(data))
	}
	return nil
}

// unsealPayload reports whether payload is an ENCRYPTED_DEBUG-sealed
// event (a Bytes value carrying an age-encrypted blob) and, if
// privateKey is set, returns it decrypted and decoded back into a
// Value. Without a private key, a sealed payload is returned as an
// opaque placeholder rather than raw ciphertext bytes.
func unsealPayload(payload value.Value, privateKey string) (value.Value, bool, error) {
	b, ok := payload.(value.Bytes)
	if !ok || !bytes.HasPrefix([]byte(b), []byte(ageArmorPrefix)) {
		return payload, false, nil
	}
	if privateKey == "" {
		return value.String("[sealed: pass --private-key to decrypt]"), true, nil
	}
	plaintext, err := redact.Unseal(b, privateKey)
	if err != nil {
		return nil, false, err
	}
	decoded, err := value.Decode(plaintext)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

func toRunView(run model.Run) (runView, error) {
	steps := make([]divergence.StepSummary, len(run.Steps))
	for i, step := range run.Steps {
		fp, err := model.ComputeFingerprint(step)
		if err != nil {
			return runView{}, fmt.Errorf("show: %w", err)
		}
		steps[i] = divergence.StepSummary{
			Idx:        step.Idx,
			Name:       step.Name,
			InputHash:  fp.InputHash,
			OutputHash: fp.OutputHash,
			EventCount: len(step.Events),
			HasError:   fp.HasError,
		}
	}
	return runView{
		RunID:         run.RunID,
		SchemaVersion: run.SchemaVersion,
		Status:        string(run.Status),
		Steps:         steps,
	}, nil
}
