package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forkline/forkline/internal/model"
	"github.com/forkline/forkline/internal/store"
)

// RunsOptions holds the flags for `forkline runs`.
type RunsOptions struct {
	*RootOptions
	Database string
}

// NewRunsCommand builds `forkline runs`, listing every run recorded in
// the store in the deterministic order store.ListRuns defines.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite run store")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(cmd *cobra.Command, opts *RunsOptions) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitOperationErr, "opening store", err)
	}
	defer st.Close()

	summaries, err := st.ListRuns(context.Background())
	if err != nil {
		return WrapExitError(ExitOperationErr, "listing runs", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := formatter.Success(summaries); err != nil {
			return WrapExitError(ExitOperationErr, "writing output", err)
		}
		return nil
	}

	for _, s := range summaries {
		fmt.Fprintln(cmd.OutOrStdout(), formatRunSummary(s))
	}
	return nil
}

func formatRunSummary(s model.RunSummary) string {
	ended := s.EndedAt
	if ended == "" {
		ended = "(running)"
	}
	return fmt.Sprintf("%s  %-10s  %-20s  steps=%d  %s -> %s",
		s.RunID, s.Status, s.Entrypoint, s.StepCount, s.StartedAt, ended)
}
