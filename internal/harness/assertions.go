package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace so a failure reads without re-running.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] seq=%d %s", i+1, event.Seq, event.Kind)
		if event.StepID != "" {
			fmt.Fprintf(&buf, " step=%s", event.StepID)
		}
		if event.Function != "" {
			fmt.Fprintf(&buf, " fn=%s", event.Function)
		}
		if !event.Success {
			fmt.Fprintf(&buf, " error=%q", event.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// evaluate runs every assertion in the scenario against the trace,
// collecting all failures rather than stopping at the first.
func evaluate(ctx context.Context, c *chain.Chain, scenario *Scenario, lineage string, trace []TraceEvent) []error {
	var failures []error
	for _, a := range scenario.Assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, a)
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		case AssertCompleted:
			err = assertCompleted(trace, a)
		case AssertChainVerifies:
			err = assertChainVerifies(ctx, c, lineage, trace)
		case AssertNoPending:
			err = assertNoPending(trace)
		}
		if err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}

func matches(event TraceEvent, a Assertion) bool {
	if a.Kind != "" && event.Kind != a.Kind {
		return false
	}
	if a.StepID != "" && event.StepID != a.StepID {
		return false
	}
	if a.Function != "" && event.Function != a.Function {
		return false
	}
	return true
}

func describeMatcher(a Assertion) string {
	parts := make([]string, 0, 3)
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.StepID != "" {
		parts = append(parts, "step="+a.StepID)
	}
	if a.Function != "" {
		parts = append(parts, "fn="+a.Function)
	}
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that at least one event matches the
// kind/step/function fields of the assertion.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeMatcher(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, event := range trace {
		if matches(event, a) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d events matching %s", a.Count, describeMatcher(a)),
		Actual:   fmt.Sprintf("%d events", n),
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed step ids first appear in the
// given order. Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	var seen []string
	firstAt := make(map[string]int)
	for i, event := range trace {
		if event.StepID == "" {
			continue
		}
		if _, ok := firstAt[event.StepID]; !ok {
			firstAt[event.StepID] = i
			seen = append(seen, event.StepID)
		}
	}

	prev := -1
	for _, step := range a.Steps {
		at, ok := firstAt[step]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order %s", strings.Join(a.Steps, " < ")),
				Actual:   fmt.Sprintf("step %q not in trace", step),
				Trace:    trace,
			}
		}
		if at <= prev {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order %s", strings.Join(a.Steps, " < ")),
				Actual:   "observed order " + strings.Join(seen, " < "),
				Trace:    trace,
			}
		}
		prev = at
	}
	return nil
}

// assertCompleted checks the terminal state of the plan. "completed"
// requires a PlanCompleted event, "aborted" a PlanAborted or Cancelled one.
func assertCompleted(trace []TraceEvent, a Assertion) error {
	var terminal string
	for _, event := range trace {
		switch ir.Kind(event.Kind) {
		case ir.KindPlanCompleted:
			terminal = "completed"
		case ir.KindPlanAborted, ir.KindCancelled:
			terminal = "aborted"
		}
	}
	if terminal == a.State {
		return nil
	}
	actual := terminal
	if actual == "" {
		actual = "no terminal event"
	}
	return &AssertionError{
		Type:     AssertCompleted,
		Expected: "plan " + a.State,
		Actual:   actual,
		Trace:    trace,
	}
}

// assertChainVerifies re-verifies the lineage's hash chain.
func assertChainVerifies(ctx context.Context, c *chain.Chain, lineage string, trace []TraceEvent) error {
	if err := c.Verify(ctx, lineage); err != nil {
		return &AssertionError{
			Type:     AssertChainVerifies,
			Expected: "hash chain verifies",
			Actual:   err.Error(),
			Trace:    trace,
		}
	}
	return nil
}

// assertNoPending checks that every Yield was answered by a Resume or
// closed by a Cancelled action carrying the same idempotency key.
func assertNoPending(trace []TraceEvent) error {
	resolved := make(map[string]bool)
	for _, event := range trace {
		switch ir.Kind(event.Kind) {
		case ir.KindResume, ir.KindCancelled:
			resolved[event.IdempotencyKey] = true
		}
	}
	var pending []string
	for _, event := range trace {
		if ir.Kind(event.Kind) == ir.KindYield && !resolved[event.IdempotencyKey] {
			pending = append(pending, event.IdempotencyKey)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoPending,
		Expected: "no unresolved effects",
		Actual:   fmt.Sprintf("pending keys: %s", strings.Join(pending, ", ")),
		Trace:    trace,
	}
}
