package ir

import (
	"fmt"
)

// Action is one immutable recorded execution event.
//
// ActionID, Sequence, Hash, and Timestamp are assigned by the store at
// append time; everything else comes from the Draft. Once persisted no field
// is ever mutated - provenance amendments and archival are themselves new
// recorded actions.
type Action struct {
	ActionID       string           `json:"action_id"`
	ParentActionID string           `json:"parent_action_id,omitempty"`
	PlanID         string           `json:"plan_id"`
	IntentID       string           `json:"intent_id"`
	StepID         string           `json:"step_id,omitempty"`
	Kind           Kind             `json:"kind"`
	FunctionName   string           `json:"function_name,omitempty"`
	Args           VArray           `json:"args,omitempty"`
	Result         VArray           `json:"result,omitempty"`
	Success        bool             `json:"success"`
	Error          string           `json:"error,omitempty"`
	CostMicros     int64            `json:"cost_micros"`
	DurationMS     int64            `json:"duration_ms"`
	Sequence       int64            `json:"sequence"`
	Hash           string           `json:"hash"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Resources      []string         `json:"resources,omitempty"`
	Provenance     VObject          `json:"provenance,omitempty"`

	// Timestamp is informational only (unix millis). It is excluded from
	// the chain hash so that replay reproduces identical hashes.
	Timestamp int64 `json:"timestamp"`
}

// Lineage returns the lineage this action belongs to. A lineage is keyed by
// the plan id of its PlanStarted root.
func (a Action) Lineage() string {
	return a.PlanID
}

// Draft returns the caller-supplied fields of a stored action, exactly as
// they would have been presented at append time. verify uses this to
// recompute the stored hash.
func (a Action) Draft() Draft {
	return Draft{
		ParentActionID: a.ParentActionID,
		PlanID:         a.PlanID,
		IntentID:       a.IntentID,
		StepID:         a.StepID,
		Kind:           a.Kind,
		FunctionName:   a.FunctionName,
		Args:           a.Args,
		Result:         a.Result,
		Success:        a.Success,
		Error:          a.Error,
		CostMicros:     a.CostMicros,
		DurationMS:     a.DurationMS,
		IdempotencyKey: a.IdempotencyKey,
		Resources:      a.Resources,
		Provenance:     a.Provenance,
	}
}

// Draft holds every caller-supplied field of an Action. The store assigns
// ActionID, Sequence, Hash, and Timestamp on append.
type Draft struct {
	ParentActionID string
	PlanID         string
	IntentID       string
	StepID         string
	Kind           Kind
	FunctionName   string
	Args           VArray
	Result         VArray
	Success        bool
	Error          string
	CostMicros     int64
	DurationMS     int64
	IdempotencyKey string
	Resources      []string
	Provenance     VObject
}

// NewDraft creates a draft with the required ownership references.
func NewDraft(kind Kind, planID, intentID string) Draft {
	return Draft{Kind: kind, PlanID: planID, IntentID: intentID, Success: true}
}

// WithParent sets the structural parent.
func (d Draft) WithParent(parentID string) Draft {
	d.ParentActionID = parentID
	return d
}

// WithStep sets the owning step id.
func (d Draft) WithStep(stepID string) Draft {
	d.StepID = stepID
	return d
}

// WithFunction sets the symbolic operation name.
func (d Draft) WithFunction(name string) Draft {
	d.FunctionName = name
	return d
}

// WithArgs sets the argument values.
func (d Draft) WithArgs(args ...Value) Draft {
	d.Args = VArray(args)
	return d
}

// WithResult sets the produced values and marks the draft successful.
func (d Draft) WithResult(result ...Value) Draft {
	d.Result = VArray(result)
	d.Success = true
	return d
}

// WithError marks the draft failed with the given error detail.
func (d Draft) WithError(detail string) Draft {
	d.Success = false
	d.Error = detail
	return d
}

// WithIdempotencyKey sets the effect deduplication key.
func (d Draft) WithIdempotencyKey(key string) Draft {
	d.IdempotencyKey = key
	return d
}

// WithResources declares named resources this action touches; they feed the
// resource-based dependency index.
func (d Draft) WithResources(names ...string) Draft {
	d.Resources = names
	return d
}

// WithCost sets resource accounting fields.
func (d Draft) WithCost(costMicros, durationMS int64) Draft {
	d.CostMicros = costMicros
	d.DurationMS = durationMS
	return d
}

// DraftError describes why a draft was rejected. It is returned before any
// hash is computed; a rejected draft has no effect on the store.
type DraftError struct {
	Field   string
	Message string
}

func (e DraftError) Error() string {
	return fmt.Sprintf("invalid draft: %s: %s", e.Field, e.Message)
}

// Validate checks structural rules that do not need store access. Parent
// resolvability is checked by the chain at append time, against the store
// snapshot. Returns all violations, not just the first.
func (d Draft) Validate() []DraftError {
	var errs []DraftError

	if !d.Kind.Valid() {
		errs = append(errs, DraftError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", d.Kind)})
		return errs
	}
	if d.PlanID == "" {
		errs = append(errs, DraftError{Field: "plan_id", Message: "required"})
	}
	if d.IntentID == "" {
		errs = append(errs, DraftError{Field: "intent_id", Message: "required"})
	}
	if d.Kind.RequiresFunction() && d.FunctionName == "" {
		errs = append(errs, DraftError{
			Field:   "function_name",
			Message: fmt.Sprintf("required for kind %s", d.Kind),
		})
	}
	if d.Kind.RequiresIdempotencyKey() && d.IdempotencyKey == "" {
		errs = append(errs, DraftError{
			Field:   "idempotency_key",
			Message: fmt.Sprintf("required for kind %s", d.Kind),
		})
	}
	if d.Kind.Root() {
		if d.ParentActionID != "" {
			errs = append(errs, DraftError{
				Field:   "parent_action_id",
				Message: fmt.Sprintf("%s starts a lineage and must not have a parent", d.Kind),
			})
		}
	} else if d.ParentActionID == "" {
		errs = append(errs, DraftError{
			Field:   "parent_action_id",
			Message: fmt.Sprintf("required for non-root kind %s", d.Kind),
		})
	}
	if !d.Success && d.Kind != KindStepFailed && d.Kind != KindPlanAborted && d.Error == "" {
		errs = append(errs, DraftError{Field: "error", Message: "failed action needs error detail"})
	}

	return errs
}
