package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios execute a plan script and assert on the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Plan is an inline CUE plan script (the same format planspec loads
	// from disk).
	Plan string `yaml:"plan"`

	// Suspend, when set, checkpoints the plan's lineage after the run,
	// using the given string as the environment snapshot.
	Suspend string `yaml:"suspend,omitempty"`

	// Resume supplies effect results (per idempotency key) for resuming
	// the checkpoint taken by Suspend. Requires Suspend.
	Resume map[string][]any `yaml:"resume,omitempty"`

	// ResumeTwice re-runs the resume a second time; the trace must not
	// change.
	ResumeTwice bool `yaml:"resume_twice,omitempty"`

	// Cancel abandons the checkpoint with the given reason instead of
	// resuming. Mutually exclusive with Resume.
	Cancel string `yaml:"cancel,omitempty"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion types.
const (
	// AssertTraceContains requires at least one event matching the given
	// kind/step/function fields.
	AssertTraceContains = "trace_contains"

	// AssertTraceCount requires exactly Count events of the given kind.
	AssertTraceCount = "trace_count"

	// AssertTraceOrder requires the listed step ids to first appear in the
	// given order. Intervening events are allowed.
	AssertTraceOrder = "trace_order"

	// AssertCompleted requires the plan to have finished with the given
	// terminal state: "completed" or "aborted".
	AssertCompleted = "completed"

	// AssertChainVerifies requires hash verification of the lineage to
	// pass after the run.
	AssertChainVerifies = "chain_verifies"

	// AssertNoPending requires no unresolved effects after the run.
	AssertNoPending = "no_pending"
)

// Assertion validates one property of the final trace.
type Assertion struct {
	Type string `yaml:"type"`

	// Matcher fields for trace_contains / trace_count.
	Kind     string `yaml:"kind,omitempty"`
	StepID   string `yaml:"step_id,omitempty"`
	Function string `yaml:"function,omitempty"`
	Count    int    `yaml:"count,omitempty"`

	// Steps for trace_order: step ids that must first appear in this order.
	Steps []string `yaml:"steps,omitempty"`

	// State for the completed assertion: "completed" or "aborted".
	State string `yaml:"state,omitempty"`
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a YAML scenario document and validates it.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks structural scenario rules.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("scenario %s: plan script is required", s.Name)
	}
	if (len(s.Resume) > 0 || s.Cancel != "") && s.Suspend == "" {
		return fmt.Errorf("scenario %s: resume/cancel requires suspend", s.Name)
	}
	if len(s.Resume) > 0 && s.Cancel != "" {
		return fmt.Errorf("scenario %s: resume and cancel are mutually exclusive", s.Name)
	}
	if s.ResumeTwice && len(s.Resume) == 0 {
		return fmt.Errorf("scenario %s: resume_twice requires resume", s.Name)
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains, AssertChainVerifies, AssertNoPending:
		case AssertTraceCount:
			if a.Kind == "" {
				return fmt.Errorf("scenario %s: assertion %d: trace_count needs kind", s.Name, i)
			}
		case AssertTraceOrder:
			if len(a.Steps) < 2 {
				return fmt.Errorf("scenario %s: assertion %d: trace_order needs at least two steps", s.Name, i)
			}
		case AssertCompleted:
			if a.State != "completed" && a.State != "aborted" {
				return fmt.Errorf("scenario %s: assertion %d: state must be completed or aborted", s.Name, i)
			}
		default:
			return fmt.Errorf("scenario %s: assertion %d: unknown type %q", s.Name, i, a.Type)
		}
	}
	return nil
}
