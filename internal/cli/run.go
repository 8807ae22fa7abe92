package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/planspec"
	"github.com/arclabs/causalchain/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// RunSummary is the run command's output payload.
type RunSummary struct {
	PlanID      string `json:"plan_id"`
	Actions     int    `json:"actions"`
	Completed   bool   `json:"completed"`
	FailedAt    string `json:"failed_at,omitempty"`
	SuspendedAt string `json:"suspended_at,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plan.cue>",
		Short: "Execute a plan script against the ledger",
		Long: `Compile a CUE plan script and record its execution as a new
lineage. Effect steps without a scripted outcome leave the plan suspended
at their Yield; checkpoint and resume it from the orchestrator.

The database is created if it does not exist.

Examples:
  causalchain run --db ./ledger.db ./plans/deploy.cue
  causalchain run --db ./ledger.db ./plans/deploy.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd, args[0])
		},
	}

	return cmd
}

func runPlan(opts *RunOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	spec, err := planspec.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile plan script", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	c, err := chain.Open(ctx, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open chain", err)
	}

	report, err := planspec.NewRunner(c).Run(ctx, spec)
	if err != nil {
		return WrapExitError(ExitFailure, "plan execution failed", err)
	}

	summary := RunSummary{
		PlanID:      report.PlanID,
		Actions:     len(report.Actions),
		Completed:   report.Completed,
		FailedAt:    report.FailedAt,
		SuspendedAt: report.SuspendedAt,
	}
	if opts.Format == "json" {
		if err := out.JSON(summary); err != nil {
			return err
		}
	} else {
		switch {
		case report.Completed:
			out.Textf("plan %s completed: %d actions recorded\n", report.PlanID, len(report.Actions))
		case report.Suspended:
			out.Textf("plan %s suspended at step %s: %d actions recorded\n",
				report.PlanID, report.SuspendedAt, len(report.Actions))
		default:
			out.Textf("plan %s aborted at step %s: %d actions recorded\n",
				report.PlanID, report.FailedAt, len(report.Actions))
		}
	}

	if !report.Completed && !report.Suspended {
		return &ExitError{Code: ExitFailure, Message: "plan aborted at step " + report.FailedAt}
	}
	return nil
}
