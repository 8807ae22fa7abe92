package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/query"
	"github.com/arclabs/causalchain/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Lineage     string
	Intent      string
	Step        string
	Kinds       []string
	Function    string
	Failures    bool
	MinCost     int64
	MinDuration int64
	SinceSeq    int64
	UntilSeq    int64
	Limit       int

	Subtree string
	Slow    int
	ByCost  bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query ledger actions",
		Long: `Select actions by lineage, kind, step, function, cost, or sequence
range. --until-seq makes the read a snapshot read: the same bound always
returns the same rows.

--subtree walks the parent/child tree under one action, --slow lists the
longest-running actions, and --by-cost aggregates cost per function.

Examples:
  causalchain query --db ./ledger.db --lineage deploy-7 --failures
  causalchain query --db ./ledger.db --kind Yield --kind Resume --limit 20
  causalchain query --db ./ledger.db --lineage deploy-7 --slow 10
  causalchain query --db ./ledger.db --lineage deploy-7 --by-cost --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Lineage, "lineage", "", "restrict to one lineage")
	cmd.Flags().StringVar(&opts.Intent, "intent", "", "restrict to one intent id")
	cmd.Flags().StringVar(&opts.Step, "step", "", "restrict to one step id")
	cmd.Flags().StringArrayVar(&opts.Kinds, "kind", nil, "restrict to kind (repeatable)")
	cmd.Flags().StringVar(&opts.Function, "function", "", "restrict to one function name")
	cmd.Flags().BoolVar(&opts.Failures, "failures", false, "only failed actions")
	cmd.Flags().Int64Var(&opts.MinCost, "min-cost", 0, "minimum cost in microdollars")
	cmd.Flags().Int64Var(&opts.MinDuration, "min-duration", 0, "minimum duration in milliseconds")
	cmd.Flags().Int64Var(&opts.SinceSeq, "since-seq", 0, "first sequence (inclusive)")
	cmd.Flags().Int64Var(&opts.UntilSeq, "until-seq", 0, "last sequence (inclusive, snapshot bound)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Subtree, "subtree", "", "list the subtree rooted at this action id")
	cmd.Flags().IntVar(&opts.Slow, "slow", 0, "list the N slowest actions (--min-duration sets the threshold)")
	cmd.Flags().BoolVar(&opts.ByCost, "by-cost", false, "aggregate cost per function (optionally restricted by --lineage)")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	eng := query.New(st)

	if opts.ByCost {
		costs, err := eng.CostByFunction(ctx, opts.Lineage)
		if err != nil {
			return WrapExitError(ExitCommandError, "cost aggregation failed", err)
		}
		if opts.Format == "json" {
			return out.JSON(costs)
		}
		for _, c := range costs {
			out.Textf("%-30s calls=%-5d cost=%dµs duration=%dms\n",
				c.FunctionName, c.Calls, c.TotalCostMicros, c.TotalDurationMS)
		}
		return nil
	}

	var actions []ir.Action
	switch {
	case opts.Subtree != "":
		actions, err = eng.Subtree(ctx, opts.Subtree, opts.UntilSeq)
	case opts.Slow > 0:
		actions, err = eng.SlowNodes(ctx, opts.Lineage, opts.MinDuration, opts.Slow)
	default:
		kinds := make([]ir.Kind, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = ir.Kind(k)
		}
		actions, err = eng.Run(ctx, query.Filter{
			Lineage:       opts.Lineage,
			IntentID:      opts.Intent,
			StepID:        opts.Step,
			Kinds:         kinds,
			FunctionName:  opts.Function,
			OnlyFailures:  opts.Failures,
			MinCostMicros: opts.MinCost,
			MinDurationMS: opts.MinDuration,
			SinceSeq:      opts.SinceSeq,
			UntilSeq:      opts.UntilSeq,
			Limit:         opts.Limit,
		})
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	if opts.Format == "json" {
		return out.JSON(actions)
	}
	for _, a := range actions {
		out.Textf("%s\n", formatAction(a, 0))
	}
	return nil
}
