package planspec

import (
	"fmt"
	"strings"

	"github.com/arclabs/causalchain/internal/ir"
)

// Validation error codes (E100-E129)
const (
	ErrPlanIDEmpty      = "E100" // plan id is required
	ErrIntentEmpty      = "E101" // intent id is required
	ErrNoSteps          = "E102" // at least one step required
	ErrStepCallEmpty    = "E103" // step call is required
	ErrDuplicateStep    = "E104" // duplicate step name
	ErrEffectNeedsKey   = "E105" // effect step needs idempotency key
	ErrDuplicateKey     = "E106" // idempotency key reused across steps
	ErrKeyWithoutEffect = "E107" // key on a non-effect step
)

// PlanSpec is a compiled plan script.
type PlanSpec struct {
	PlanID   string     `json:"plan_id"`
	IntentID string     `json:"intent_id"`
	Steps    []StepSpec `json:"steps"`
}

// StepSpec is one scripted step, in declaration order.
type StepSpec struct {
	StepID string `json:"step_id"`
	Call   string `json:"call"`

	// Effect marks the step as an external effect: it is recorded as a
	// Yield/Resume pair keyed by IdempotencyKey instead of a direct call.
	Effect         bool   `json:"effect,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Pure marks the step as a pure evaluation (PureEval); default is a
	// capability call.
	Pure bool `json:"pure,omitempty"`

	Args      ir.VArray `json:"args,omitempty"`
	Resources []string  `json:"resources,omitempty"`

	// Result is the scripted outcome; Error marks the step failed.
	Result ir.VArray `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`

	CostMicros int64 `json:"cost_micros,omitempty"`
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// ValidationError represents a plan script validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled plan spec against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(spec *PlanSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.PlanID) == "" {
		errs = append(errs, ValidationError{
			Field: "plan.id", Message: "plan id is required", Code: ErrPlanIDEmpty,
		})
	}
	if strings.TrimSpace(spec.IntentID) == "" {
		errs = append(errs, ValidationError{
			Field: "plan.intent", Message: "intent id is required", Code: ErrIntentEmpty,
		})
	}
	if len(spec.Steps) == 0 {
		errs = append(errs, ValidationError{
			Field: "plan.step", Message: "at least one step is required", Code: ErrNoSteps,
		})
	}

	stepNames := make(map[string]bool)
	keys := make(map[string]string)
	for _, step := range spec.Steps {
		field := fmt.Sprintf("plan.step.%s", step.StepID)

		if stepNames[step.StepID] {
			errs = append(errs, ValidationError{
				Field: field, Message: "duplicate step name", Code: ErrDuplicateStep,
			})
		}
		stepNames[step.StepID] = true

		if strings.TrimSpace(step.Call) == "" {
			errs = append(errs, ValidationError{
				Field: field + ".call", Message: "call is required", Code: ErrStepCallEmpty,
			})
		}
		if step.Effect && step.IdempotencyKey == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".key",
				Message: "effect step requires an idempotency key",
				Code:    ErrEffectNeedsKey,
			})
		}
		if !step.Effect && step.IdempotencyKey != "" {
			errs = append(errs, ValidationError{
				Field:   field + ".key",
				Message: "idempotency key is only valid on effect steps",
				Code:    ErrKeyWithoutEffect,
			})
		}
		if step.IdempotencyKey != "" {
			if prev, ok := keys[step.IdempotencyKey]; ok {
				errs = append(errs, ValidationError{
					Field:   field + ".key",
					Message: fmt.Sprintf("idempotency key %q already used by step %s", step.IdempotencyKey, prev),
					Code:    ErrDuplicateKey,
				})
			}
			keys[step.IdempotencyKey] = step.StepID
		}
	}
	return errs
}
