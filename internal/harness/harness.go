package harness

import (
	"context"
	"fmt"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/planspec"
	"github.com/arclabs/causalchain/internal/replay"
	"github.com/arclabs/causalchain/internal/store"
	"github.com/arclabs/causalchain/internal/testutil"
)

// fixedEpoch is the frozen wall-clock instant scenarios run at.
// Timestamps are informational; pinning them keeps traces byte-stable.
const fixedEpoch = int64(1700000000000)

// TraceEvent is one recorded action, projected to its deterministic
// fields. Action ids and hashes are deliberately excluded so golden files
// stay readable and survive hash-format evolution.
type TraceEvent struct {
	Seq            int64     `json:"seq"`
	Kind           string    `json:"kind"`
	StepID         string    `json:"step_id,omitempty"`
	Function       string    `json:"function,omitempty"`
	Args           ir.VArray `json:"args,omitempty"`
	Result         ir.VArray `json:"result,omitempty"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// Result captures a scenario execution.
type Result struct {
	Scenario *Scenario
	PlanID   string
	Trace    []TraceEvent
	Passed   bool
	Failures []error
}

// Run executes a scenario in a fresh in-memory store with sequential ids
// and a frozen clock, evaluates its assertions, and returns the result.
// Run returns an error only when the scenario itself cannot execute;
// assertion failures land in Result.Failures.
func Run(scenario *Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("harness: open store: %w", err)
	}
	defer st.Close()

	c, err := chain.Open(ctx, st,
		chain.WithIDGenerator(testutil.NewSequentialIDs("act")),
		chain.WithNow(testutil.NewFrozenClock(fixedEpoch).Now))
	if err != nil {
		return nil, fmt.Errorf("harness: open chain: %w", err)
	}

	spec, err := planspec.LoadString(scenario.Plan)
	if err != nil {
		return nil, fmt.Errorf("harness: compile plan: %w", err)
	}

	if _, err := planspec.NewRunner(c).Run(ctx, spec); err != nil {
		return nil, fmt.Errorf("harness: run plan: %w", err)
	}

	if scenario.Suspend != "" {
		if err := runSuspension(ctx, c, scenario, spec.PlanID); err != nil {
			return nil, err
		}
	}

	result := &Result{Scenario: scenario, PlanID: spec.PlanID}
	actions, err := st.LineageActions(ctx, spec.PlanID)
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:            a.Sequence,
			Kind:           string(a.Kind),
			StepID:         a.StepID,
			Function:       a.FunctionName,
			Args:           a.Args,
			Result:         a.Result,
			Success:        a.Success,
			Error:          a.Error,
			IdempotencyKey: a.IdempotencyKey,
		})
	}

	result.Failures = evaluate(ctx, c, scenario, spec.PlanID, result.Trace)
	result.Passed = len(result.Failures) == 0
	return result, nil
}

func runSuspension(ctx context.Context, c *chain.Chain, scenario *Scenario, planID string) error {
	ctl := replay.New(c, replay.WithIDGenerator(testutil.NewSequentialIDs("cp")))
	cp, err := ctl.Checkpoint(ctx, planID, []byte(scenario.Suspend))
	if err != nil {
		return fmt.Errorf("harness: checkpoint: %w", err)
	}

	switch {
	case scenario.Cancel != "":
		if _, err := ctl.Cancel(ctx, cp.CheckpointID, scenario.Cancel); err != nil {
			return fmt.Errorf("harness: cancel: %w", err)
		}
	case len(scenario.Resume) > 0:
		results := make(map[string]replay.EffectResult, len(scenario.Resume))
		for key, raw := range scenario.Resume {
			vals := make(ir.VArray, 0, len(raw))
			for _, item := range raw {
				v, err := ir.FromAny(item)
				if err != nil {
					return fmt.Errorf("harness: resume result for %s: %w", key, err)
				}
				vals = append(vals, v)
			}
			results[key] = replay.EffectResult{Result: vals}
		}
		runs := 1
		if scenario.ResumeTwice {
			runs = 2
		}
		for i := 0; i < runs; i++ {
			if _, err := ctl.Resume(ctx, cp.CheckpointID, results); err != nil {
				return fmt.Errorf("harness: resume: %w", err)
			}
		}
	}
	return nil
}
