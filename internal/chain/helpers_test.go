package chain

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

// openTestChain creates a chain over a fresh store with deterministic ids
// and a frozen wall clock.
func openTestChain(t *testing.T, opts ...Option) *Chain {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ids := make([]string, 256)
	for i := range ids {
		ids[i] = fmt.Sprintf("act-%03d", i+1)
	}
	opts = append([]Option{
		WithIDGenerator(NewFixedGenerator(ids...)),
		WithNow(func() int64 { return 1700000000000 }),
	}, opts...)

	c, err := Open(context.Background(), s, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return c
}

// startPlan appends a PlanStarted root and returns it.
func startPlan(t *testing.T, c *Chain, planID string) ir.Action {
	t.Helper()
	root, err := c.Append(context.Background(), ir.NewDraft(ir.KindPlanStarted, planID, "intent-1"))
	if err != nil {
		t.Fatalf("Append(PlanStarted) failed: %v", err)
	}
	return root
}
