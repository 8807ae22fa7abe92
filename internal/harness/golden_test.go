package harness

import (
	"testing"
)

// Golden files live in testdata/golden/{scenario name}.golden and hold the
// canonical-JSON trace snapshot. Regenerate with:
//
//	go test ./internal/harness -update

func TestGolden_SimplePlan(t *testing.T) {
	RunWithGolden(t, &Scenario{
		Name: "simple-plan",
		Plan: greetPlan,
		Assertions: []Assertion{
			{Type: AssertCompleted, State: "completed"},
			{Type: AssertChainVerifies},
		},
	})
}

func TestGolden_SuspendResume(t *testing.T) {
	RunWithGolden(t, &Scenario{
		Name:    "suspend-resume",
		Plan:    suspendingPlan,
		Suspend: "env-v1",
		Resume:  map[string][]any{"K-fetch": {200, "ok"}},
		Assertions: []Assertion{
			{Type: AssertNoPending},
			{Type: AssertChainVerifies},
		},
	})
}

func TestGolden_SuspendCancel(t *testing.T) {
	RunWithGolden(t, &Scenario{
		Name:    "suspend-cancel",
		Plan:    suspendingPlan,
		Suspend: "env-v1",
		Cancel:  "maintenance window",
		Assertions: []Assertion{
			{Type: AssertCompleted, State: "aborted"},
			{Type: AssertNoPending},
		},
	})
}
