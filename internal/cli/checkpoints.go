package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/replay"
	"github.com/arclabs/causalchain/internal/store"
)

// CheckpointsOptions holds flags for the checkpoints command.
type CheckpointsOptions struct {
	*RootOptions
	Lineage string
	Cancel  string
	Reason  string
}

// NewCheckpointsCommand creates the checkpoints command.
func NewCheckpointsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List or cancel open checkpoints",
		Long: `List every unconsumed checkpoint, oldest first. A stale open
checkpoint is evidence of an abandoned execution.

--cancel closes a checkpoint: every pending effect is recorded as
Cancelled with the given reason. Resuming with real effect results is an
orchestrator operation and has no CLI surface.

Examples:
  causalchain checkpoints --db ./ledger.db
  causalchain checkpoints --db ./ledger.db --cancel cp-42 --reason "operator abort"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoints(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lineage, "lineage", "", "restrict the listing to one lineage")
	cmd.Flags().StringVar(&opts.Cancel, "cancel", "", "cancel the checkpoint with this id")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "cancellation reason (required with --cancel)")

	return cmd
}

func runCheckpoints(opts *CheckpointsOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Cancel != "" {
		if opts.Reason == "" {
			return WrapExitError(ExitCommandError, "--cancel requires --reason", nil)
		}
		c, err := chain.Open(ctx, st)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open chain", err)
		}
		report, err := replay.New(c).Cancel(ctx, opts.Cancel, opts.Reason)
		if err != nil {
			return WrapExitError(ExitFailure, "cancel failed", err)
		}
		if opts.Format == "json" {
			return out.JSON(report)
		}
		out.Textf("cancelled %s: %d effects closed on lineage %s\n",
			report.CheckpointID, len(report.Resumed), report.Lineage)
		return nil
	}

	checkpoints, err := st.OpenCheckpoints(ctx, opts.Lineage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list checkpoints", err)
	}

	if opts.Format == "json" {
		return out.JSON(checkpoints)
	}
	if len(checkpoints) == 0 {
		out.Textf("no open checkpoints\n")
		return nil
	}
	for _, cp := range checkpoints {
		out.Textf("%s lineage=%s created_seq=%d pending=[%s]\n",
			cp.CheckpointID, cp.Lineage, cp.CreatedSeq, strings.Join(cp.Pending, ", "))
	}
	return nil
}
