package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/arclabs/causalchain/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	FromSeq int64
	ToSeq   int64
}

// VerifyResult reports hash verification for one lineage.
type VerifyResult struct {
	Lineage  string `json:"lineage"`
	OK       bool   `json:"ok"`
	ActionID string `json:"action_id,omitempty"`
	Seq      int64  `json:"seq,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [lineage]",
		Short: "Verify the hash chain",
		Long: `Recompute and check the hash chain of one lineage, or of every
lineage in the ledger when no lineage is given.

Exit code 1 means at least one lineage failed verification.

Examples:
  causalchain verify --db ./ledger.db
  causalchain verify --db ./ledger.db deploy-7
  causalchain verify --db ./ledger.db deploy-7 --from 10 --to 40`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd, args)
		},
	}

	cmd.Flags().Int64Var(&opts.FromSeq, "from", 0, "first sequence to verify")
	cmd.Flags().Int64Var(&opts.ToSeq, "to", 0, "last sequence to verify (0 = end of lineage)")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var lineages []string
	if len(args) == 1 {
		lineages = args
	} else {
		lineages, err = st.ListLineages(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list lineages", err)
		}
	}

	results := make([]VerifyResult, 0, len(lineages))
	failed := false
	for _, lineage := range lineages {
		r := VerifyResult{Lineage: lineage, OK: true}
		if err := st.VerifyRange(ctx, lineage, opts.FromSeq, opts.ToSeq); err != nil {
			r.OK = false
			failed = true
			var div store.DivergenceError
			if errors.As(err, &div) {
				r.ActionID = div.ActionID
				r.Seq = div.Seq
				r.Detail = div.Detail
			} else {
				r.Detail = err.Error()
			}
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if err := out.JSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.OK {
				out.Textf("%s: ok\n", r.Lineage)
			} else {
				out.Textf("%s: FAILED at seq %d (%s): %s\n", r.Lineage, r.Seq, r.ActionID, r.Detail)
			}
		}
	}

	if failed {
		return &ExitError{Code: ExitFailure, Message: "verification failed"}
	}
	return nil
}
