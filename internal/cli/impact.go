package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/arclabs/causalchain/internal/analyzer"
	"github.com/arclabs/causalchain/internal/store"
)

// ImpactOptions holds flags for the impact and causes commands.
type ImpactOptions struct {
	*RootOptions
	Depth int
}

// NewImpactCommand creates the impact command.
func NewImpactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImpactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "impact <action-id>",
		Short: "Show everything downstream of an action",
		Long: `Walk the forward closure of an action: its structural descendants
plus every action that transitively consumed its outputs. Actions whose
only dependency edge points at the start are flagged as cascade risks.

Examples:
  causalchain impact --db ./ledger.db 0198f2a1
  causalchain impact --db ./ledger.db 0198f2a1 --depth 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", analyzer.DefaultMaxDepth, "maximum traversal depth")

	return cmd
}

func runImpact(opts *ImpactOptions, cmd *cobra.Command, actionID string) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	report, err := analyzer.New(st).Impact(ctx, actionID, opts.Depth)
	if err != nil {
		return WrapExitError(ExitCommandError, "impact analysis failed", err)
	}

	if opts.Format == "json" {
		return out.JSON(report)
	}

	risk := make(map[string]bool, len(report.CascadeRisks))
	for _, id := range report.CascadeRisks {
		risk[id] = true
	}
	out.Textf("impact of %s: %d affected, %d cascade risks\n",
		actionID, len(report.Affected), len(report.CascadeRisks))
	for _, node := range report.Affected {
		marker := " "
		if risk[node.Action.ActionID] {
			marker = "!"
		}
		out.Textf("%s depth=%d %s\n", marker, node.Depth, formatAction(node.Action, 0))
	}
	return nil
}

// NewCausesCommand creates the causes command.
func NewCausesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImpactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "causes <action-id>",
		Short: "Explain where an action's inputs came from",
		Long: `Walk the dependency edges of an action backward: every action whose
outputs it transitively consumed. Structural ancestry is not followed;
use trace --tree for that.

Examples:
  causalchain causes --db ./ledger.db 0198f2a1
  causalchain causes --db ./ledger.db 0198f2a1 --depth 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCauses(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", analyzer.DefaultMaxDepth, "maximum traversal depth")

	return cmd
}

func runCauses(opts *ImpactOptions, cmd *cobra.Command, actionID string) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	causes, err := analyzer.New(st).Causes(ctx, actionID, opts.Depth)
	if err != nil {
		return WrapExitError(ExitCommandError, "cause analysis failed", err)
	}

	if opts.Format == "json" {
		return out.JSON(causes)
	}
	out.Textf("causes of %s: %d actions\n", actionID, len(causes))
	for _, node := range causes {
		out.Textf("  depth=%d %s\n", node.Depth, formatAction(node.Action, 0))
	}
	return nil
}
