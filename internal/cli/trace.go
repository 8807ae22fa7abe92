package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Step string
	Tree bool
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <lineage>",
		Short: "Show the recorded timeline of a lineage",
		Long: `Print every action of a lineage in sequence order, or as the
parent/child tree with --tree.

Examples:
  causalchain trace --db ./ledger.db deploy-7
  causalchain trace --db ./ledger.db deploy-7 --step apply
  causalchain trace --db ./ledger.db deploy-7 --tree --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Step, "step", "", "filter to one step id")
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "render the parent/child tree instead of the timeline")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command, lineage string) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	actions, err := st.LineageActions(ctx, lineage)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read lineage", err)
	}
	if len(actions) == 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("lineage %q has no actions", lineage), nil)
	}

	if opts.Step != "" {
		filtered := actions[:0]
		for _, a := range actions {
			if a.StepID == opts.Step {
				filtered = append(filtered, a)
			}
		}
		actions = filtered
	}

	if opts.Format == "json" {
		return out.JSON(actions)
	}

	if opts.Tree && opts.Step == "" {
		printTree(out, actions)
		return nil
	}
	for _, a := range actions {
		out.Textf("%s\n", formatAction(a, 0))
	}
	return nil
}

// printTree renders actions indented under their structural parents.
func printTree(out *OutputFormatter, actions []ir.Action) {
	children := make(map[string][]ir.Action)
	var roots []ir.Action
	for _, a := range actions {
		if a.ParentActionID == "" {
			roots = append(roots, a)
		} else {
			children[a.ParentActionID] = append(children[a.ParentActionID], a)
		}
	}
	var walk func(a ir.Action, depth int)
	walk = func(a ir.Action, depth int) {
		out.Textf("%s\n", formatAction(a, depth))
		for _, child := range children[a.ActionID] {
			walk(child, depth+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
}

func formatAction(a ir.Action, depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%4d] %s", strings.Repeat("  ", depth), a.Sequence, a.Kind)
	if a.StepID != "" {
		fmt.Fprintf(&b, " step=%s", a.StepID)
	}
	if a.FunctionName != "" {
		fmt.Fprintf(&b, " fn=%s", a.FunctionName)
	}
	if a.IdempotencyKey != "" {
		fmt.Fprintf(&b, " key=%s", a.IdempotencyKey)
	}
	if a.CostMicros > 0 {
		fmt.Fprintf(&b, " cost=%dµs", a.CostMicros)
	}
	if !a.Success {
		fmt.Fprintf(&b, " FAILED %q", a.Error)
	}
	return b.String()
}
