package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/arclabs/causalchain/internal/ir"
)

// TraceSnapshot is the golden-file projection of a scenario run. It is
// serialized with canonical JSON so the file content is byte-stable.
type TraceSnapshot struct {
	ScenarioName string
	PlanID       string
	Trace        []TraceEvent
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// handles IR values and primitives. Zero-valued fields are omitted to keep
// golden files short.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":     event.Seq,
			"kind":    event.Kind,
			"success": event.Success,
		}
		if event.StepID != "" {
			m["step_id"] = event.StepID
		}
		if event.Function != "" {
			m["function"] = event.Function
		}
		if len(event.Args) > 0 {
			m["args"] = event.Args
		}
		if len(event.Result) > 0 {
			m["result"] = event.Result
		}
		if event.Error != "" {
			m["error"] = event.Error
		}
		if event.IdempotencyKey != "" {
			m["idempotency_key"] = event.IdempotencyKey
		}
		traceList[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"plan_id":       s.PlanID,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario, fails the test on any assertion
// failure, and compares the trace against testdata/golden/{name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, failure := range result.Failures {
		t.Error(failure)
	}

	AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against the golden file
// named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		PlanID:       result.PlanID,
		Trace:        result.Trace,
	}
	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
}
