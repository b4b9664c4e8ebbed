package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forkline/forkline/internal/diff"
	"github.com/forkline/forkline/internal/divergence"
	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/store"
	"github.com/forkline/forkline/internal/value"
)

// DiffOptions holds the flags for `forkline diff`.
type DiffOptions struct {
	*RootOptions
	Database    string
	Window      int
	ContextSize int
	Show        string
	Canon       string
}

// NewDiffCommand builds `forkline diff --first <run_a> <run_b>`, the
// command that exposes the first-divergence engine directly.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}
	var first bool

	cmd := &cobra.Command{
		Use:   "diff <run_a_id> <run_b_id>",
		Short: "Find the first point of divergence between two recorded runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !first {
				return NewExitError(ExitOperationErr, "diff currently supports only --first")
			}
			return runDiff(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&first, "first", false, "report the first divergence (required)")
	cmd.Flags().IntVar(&opts.Window, "window", 0, "resync search window W")
	cmd.Flags().IntVar(&opts.ContextSize, "context", 0, "context window half-width around the divergence point")
	cmd.Flags().StringVar(&opts.Show, "show", "both", "which diffs to include: input|output|both")
	cmd.Flags().StringVar(&opts.Canon, "canon", "strict", "canonicalization profile (only strict is supported)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run store")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDiff(cmd *cobra.Command, opts *DiffOptions, runAID, runBID string) error {
	show := divergence.Show(opts.Show)
	switch show {
	case divergence.ShowInput, divergence.ShowOutput, divergence.ShowBoth:
	default:
		return NewExitError(ExitOperationErr, fmt.Sprintf("invalid --show %q: must be input, output, or both", opts.Show))
	}
	if opts.Canon != "strict" {
		return NewExitError(ExitOperationErr, fmt.Sprintf("invalid --canon %q: only strict is supported", opts.Canon))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitOperationErr, "opening store", err)
	}
	defer st.Close()

	ctx := context.Background()
	runA, err := loadRunOrExit(ctx, st, runAID)
	if err != nil {
		return err
	}
	runB, err := loadRunOrExit(ctx, st, runBID)
	if err != nil {
		return err
	}

	if err := model.Validate(runA); err != nil {
		return WrapExitError(ExitOperationErr, "run_a is corrupt", err)
	}
	if err := model.Validate(runB); err != nil {
		return WrapExitError(ExitOperationErr, "run_b is corrupt", err)
	}

	slog.Info("comparing runs", "run_a", runAID, "run_b", runBID, "window", opts.Window)
	result, err := divergence.Compare(runA, runB, divergence.Config{Window: opts.Window, ContextSize: opts.ContextSize, Show: show})
	if err != nil {
		return WrapExitError(ExitOperationErr, "comparing runs", err)
	}
	slog.Debug("comparison complete", "status", result.Status, "idx_a", result.IdxA, "idx_b", result.IdxB)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return WrapExitError(ExitOperationErr, "writing output", err)
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderDiffText(result))
	}

	if result.Status != divergence.StatusExactMatch {
		return NewExitError(ExitDivergence, string(result.Status))
	}
	return nil
}

func loadRunOrExit(ctx context.Context, st *store.Store, runID string) (model.Run, error) {
	run, err := st.LoadRun(ctx, runID)
	if err != nil {
		var notFound *store.RunNotFoundError
		if errors.As(err, &notFound) {
			return model.Run{}, WrapExitError(ExitOperationErr, fmt.Sprintf("run %q not found", runID), err)
		}
		return model.Run{}, WrapExitError(ExitOperationErr, fmt.Sprintf("loading run %q", runID), err)
	}
	return run, nil
}

// renderDiffText renders a Result as: status, explanation, both step
// summaries, one line per diff op, the last-equal index, and the two
// context windows.
func renderDiffText(r divergence.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", r.Status)
	fmt.Fprintf(&b, "explanation: %s\n", r.Explanation)
	if r.OldStep != nil {
		fmt.Fprintf(&b, "old_step: %s\n", formatStepSummary(*r.OldStep))
	}
	if r.NewStep != nil {
		fmt.Fprintf(&b, "new_step: %s\n", formatStepSummary(*r.NewStep))
	}
	for _, op := range r.InputDiff {
		fmt.Fprintf(&b, "%s\n", formatOp(op))
	}
	for _, op := range r.OutputDiff {
		fmt.Fprintf(&b, "%s\n", formatOp(op))
	}
	fmt.Fprintf(&b, "last_equal_idx: %d\n", r.LastEqualIdx)
	fmt.Fprintf(&b, "context_a: %s\n", formatContext(r.ContextA))
	fmt.Fprintf(&b, "context_b: %s\n", formatContext(r.ContextB))
	return b.String()
}

func formatStepSummary(s divergence.StepSummary) string {
	return fmt.Sprintf("[%d] %s (input=%s output=%s events=%d error=%t)",
		s.Idx, s.Name, shortHash(s.InputHash), shortHash(s.OutputHash), s.EventCount, s.HasError)
}

func formatContext(steps []divergence.StepSummary) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = formatStepSummary(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func shortHash(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8]
}

func formatOp(op diff.Op) string {
	switch op.Kind {
	case diff.OpAdd:
		return fmt.Sprintf("add %s: -> %s", op.Path, renderValueJSON(op.New))
	case diff.OpRemove:
		return fmt.Sprintf("remove %s: %s ->", op.Path, renderValueJSON(op.Old))
	default:
		return fmt.Sprintf("replace %s: %s -> %s", op.Path, renderValueJSON(op.Old), renderValueJSON(op.New))
	}
}

func renderValueJSON(v value.Value) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
