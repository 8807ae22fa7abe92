package ir

// Kind tags the variant of a recorded action. The set is closed: consumers
// that must handle every kind (hashing, replay, the CLI trace renderer)
// switch exhaustively over it, and adding a kind is a deliberate extension
// of this list, not a free-form string.
type Kind string

const (
	KindPlanStarted         Kind = "PlanStarted"
	KindStepStarted         Kind = "StepStarted"
	KindYield               Kind = "Yield"
	KindResume              Kind = "Resume"
	KindCapabilityCall      Kind = "CapabilityCall"
	KindPureEval            Kind = "PureEval"
	KindStepCompleted       Kind = "StepCompleted"
	KindStepFailed          Kind = "StepFailed"
	KindPlanCompleted       Kind = "PlanCompleted"
	KindPlanAborted         Kind = "PlanAborted"
	KindCancelled           Kind = "Cancelled"
	KindDelegationProposed  Kind = "DelegationProposed"
	KindDelegationApproved  Kind = "DelegationApproved"
	KindDelegationRejected  Kind = "DelegationRejected"
	KindDelegationCompleted Kind = "DelegationCompleted"
	KindProvenanceAttached  Kind = "ProvenanceAttached"
	KindActionArchived      Kind = "ActionArchived"
)

// AllKinds lists every kind in declaration order. Used by validation and by
// tests that must cover the full set.
var AllKinds = []Kind{
	KindPlanStarted,
	KindStepStarted,
	KindYield,
	KindResume,
	KindCapabilityCall,
	KindPureEval,
	KindStepCompleted,
	KindStepFailed,
	KindPlanCompleted,
	KindPlanAborted,
	KindCancelled,
	KindDelegationProposed,
	KindDelegationApproved,
	KindDelegationRejected,
	KindDelegationCompleted,
	KindProvenanceAttached,
	KindActionArchived,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPlanStarted, KindStepStarted, KindYield, KindResume,
		KindCapabilityCall, KindPureEval, KindStepCompleted, KindStepFailed,
		KindPlanCompleted, KindPlanAborted, KindCancelled,
		KindDelegationProposed, KindDelegationApproved, KindDelegationRejected,
		KindDelegationCompleted, KindProvenanceAttached, KindActionArchived:
		return true
	}
	return false
}

// RequiresFunction reports whether actions of this kind must carry a
// symbolic function name.
func (k Kind) RequiresFunction() bool {
	switch k {
	case KindYield, KindCapabilityCall, KindResume, KindPureEval:
		return true
	}
	return false
}

// RequiresIdempotencyKey reports whether actions of this kind trigger an
// external effect and therefore must carry an idempotency key.
func (k Kind) RequiresIdempotencyKey() bool {
	switch k {
	case KindYield, KindResume, KindCancelled:
		return true
	}
	return false
}

// Root reports whether this kind may start a lineage (no structural parent).
func (k Kind) Root() bool {
	return k == KindPlanStarted
}

// Terminal reports whether this kind ends a plan lineage.
func (k Kind) Terminal() bool {
	switch k {
	case KindPlanCompleted, KindPlanAborted:
		return true
	}
	return false
}

// Amendment reports whether this kind annotates an already-recorded action
// instead of advancing the plan. Amendments may target terminal actions;
// attesting a completion is the normal governance case.
func (k Kind) Amendment() bool {
	switch k {
	case KindProvenanceAttached, KindActionArchived:
		return true
	}
	return false
}
