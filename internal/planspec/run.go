package planspec

import (
	"context"
	"fmt"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/ir"
)

// Runner executes compiled plan scripts against a chain.
type Runner struct {
	chain *chain.Chain
}

// NewRunner creates a Runner over a chain.
func NewRunner(c *chain.Chain) *Runner {
	return &Runner{chain: c}
}

// RunReport describes one script execution.
type RunReport struct {
	PlanID    string      `json:"plan_id"`
	Actions   []ir.Action `json:"actions"`
	Completed bool        `json:"completed"`
	FailedAt  string      `json:"failed_at,omitempty"`

	// Suspended is set when an effect step had no scripted outcome. The
	// run stops at that step's Yield; resolving it goes through a
	// checkpoint and replay.Resume, not through re-running the script.
	Suspended   bool   `json:"suspended,omitempty"`
	SuspendedAt string `json:"suspended_at,omitempty"`
}

// Run executes a plan script step by step. Every step is bracketed by
// StepStarted and StepCompleted/StepFailed; effect steps record a
// Yield/Resume pair keyed by the script's idempotency key, so a crashed
// run resumed through a checkpoint converges instead of duplicating
// effects. A failed step aborts the plan with PlanAborted; a clean run
// ends with PlanCompleted. An effect step with no scripted result and no
// scripted error suspends the run at its Yield.
func (r *Runner) Run(ctx context.Context, spec *PlanSpec) (RunReport, error) {
	if errs := Validate(spec); len(errs) > 0 {
		return RunReport{}, errs[0]
	}

	report := RunReport{PlanID: spec.PlanID}
	record := func(a ir.Action, err error) (ir.Action, error) {
		if err == nil {
			report.Actions = append(report.Actions, a)
		}
		return a, err
	}

	root, err := record(r.chain.Append(ctx, ir.NewDraft(ir.KindPlanStarted, spec.PlanID, spec.IntentID)))
	if err != nil {
		return report, fmt.Errorf("start plan %s: %w", spec.PlanID, err)
	}

	for _, step := range spec.Steps {
		started, err := record(r.chain.Append(ctx,
			ir.NewDraft(ir.KindStepStarted, spec.PlanID, spec.IntentID).
				WithParent(root.ActionID).
				WithStep(step.StepID)))
		if err != nil {
			return report, err
		}

		// An effect with no scripted outcome is unresolved: record the
		// Yield and stop. A later replay.Resume settles it.
		if step.Effect && step.Error == "" && len(step.Result) == 0 {
			if _, err := record(r.chain.Append(ctx, yieldDraft(spec, step).WithParent(started.ActionID))); err != nil {
				return report, err
			}
			report.Suspended = true
			report.SuspendedAt = step.StepID
			return report, nil
		}

		outcome, err := r.runStep(ctx, spec, step, started.ActionID)
		if err != nil {
			return report, err
		}
		report.Actions = append(report.Actions, outcome)

		if !outcome.Success {
			_, err := record(r.chain.Append(ctx,
				ir.NewDraft(ir.KindStepFailed, spec.PlanID, spec.IntentID).
					WithParent(started.ActionID).
					WithStep(step.StepID).
					WithError(outcome.Error)))
			if err != nil {
				return report, err
			}
			_, err = record(r.chain.Append(ctx,
				ir.NewDraft(ir.KindPlanAborted, spec.PlanID, spec.IntentID).
					WithParent(root.ActionID).
					WithError(fmt.Sprintf("step %s failed: %s", step.StepID, outcome.Error))))
			if err != nil {
				return report, err
			}
			report.FailedAt = step.StepID
			return report, nil
		}

		_, err = record(r.chain.Append(ctx,
			ir.NewDraft(ir.KindStepCompleted, spec.PlanID, spec.IntentID).
				WithParent(started.ActionID).
				WithStep(step.StepID)))
		if err != nil {
			return report, err
		}
	}

	_, err = record(r.chain.Append(ctx,
		ir.NewDraft(ir.KindPlanCompleted, spec.PlanID, spec.IntentID).
			WithParent(root.ActionID)))
	if err != nil {
		return report, err
	}
	report.Completed = true
	return report, nil
}

// runStep records the step body. Effects become a Yield plus a Resume with
// the scripted outcome; pure steps and capability calls record a single
// action.
func (r *Runner) runStep(ctx context.Context, spec *PlanSpec, step StepSpec, parentID string) (ir.Action, error) {
	if step.Effect {
		yield, err := r.chain.Append(ctx, yieldDraft(spec, step).WithParent(parentID))
		if err != nil {
			return ir.Action{}, err
		}

		d := ir.NewDraft(ir.KindResume, spec.PlanID, spec.IntentID).
			WithParent(yield.ActionID).
			WithStep(step.StepID).
			WithFunction(step.Call).
			WithIdempotencyKey(step.IdempotencyKey).
			WithCost(step.CostMicros, step.DurationMS)
		if step.Error != "" {
			d = d.WithError(step.Error)
		} else {
			d = d.WithResult(step.Result...)
		}
		return r.chain.Append(ctx, d)
	}

	kind := ir.KindCapabilityCall
	if step.Pure {
		kind = ir.KindPureEval
	}
	d := ir.NewDraft(kind, spec.PlanID, spec.IntentID).
		WithParent(parentID).
		WithStep(step.StepID).
		WithFunction(step.Call).
		WithArgs(step.Args...).
		WithResources(step.Resources...).
		WithCost(step.CostMicros, step.DurationMS)
	if step.Error != "" {
		d = d.WithError(step.Error)
	} else {
		d = d.WithResult(step.Result...)
	}
	return r.chain.Append(ctx, d)
}

func yieldDraft(spec *PlanSpec, step StepSpec) ir.Draft {
	return ir.NewDraft(ir.KindYield, spec.PlanID, spec.IntentID).
		WithStep(step.StepID).
		WithFunction(step.Call).
		WithArgs(step.Args...).
		WithResources(step.Resources...).
		WithIdempotencyKey(step.IdempotencyKey)
}
