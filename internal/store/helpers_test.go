package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/arclabs/causalchain/internal/ir"
)

// createTestStore creates a fresh on-disk store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// appendTestChain appends n hash-linked actions to a lineage, starting with
// a PlanStarted root, and returns them in order.
func appendTestChain(t *testing.T, s *Store, planID string, n int) []ir.Action {
	t.Helper()
	ctx := context.Background()

	var actions []ir.Action
	parentID, parentHash := "", ir.GenesisSeed
	for i := 0; i < n; i++ {
		d := ir.NewDraft(ir.KindPlanStarted, planID, "intent-1")
		if i > 0 {
			d = ir.NewDraft(ir.KindPureEval, planID, "intent-1").
				WithParent(parentID).
				WithFunction("step").
				WithArgs(ir.Int(int64(i))).
				WithResult(ir.Int(int64(i * 10)))
		}
		seq := baseSeq(t, s) + 1
		a := buildAction(t, d, fmt.Sprintf("%s-act-%d", planID, i), seq, parentHash)
		if err := s.InsertAction(ctx, a, nil, nil); err != nil {
			t.Fatalf("InsertAction() %d failed: %v", i, err)
		}
		actions = append(actions, a)
		parentID, parentHash = a.ActionID, a.Hash
	}
	return actions
}

func baseSeq(t *testing.T, s *Store) int64 {
	t.Helper()
	seq, err := s.LastSeq(context.Background())
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	return seq
}

// buildAction assigns the store-owned fields of a draft the way the chain
// does at append time.
func buildAction(t *testing.T, d ir.Draft, actionID string, seq int64, parentHash string) ir.Action {
	t.Helper()
	hash, err := ir.ActionHash(d, seq, parentHash)
	if err != nil {
		t.Fatalf("ActionHash() failed: %v", err)
	}
	return ir.Action{
		ActionID:       actionID,
		ParentActionID: d.ParentActionID,
		PlanID:         d.PlanID,
		IntentID:       d.IntentID,
		StepID:         d.StepID,
		Kind:           d.Kind,
		FunctionName:   d.FunctionName,
		Args:           d.Args,
		Result:         d.Result,
		Success:        d.Success,
		Error:          d.Error,
		CostMicros:     d.CostMicros,
		DurationMS:     d.DurationMS,
		Sequence:       seq,
		Hash:           hash,
		IdempotencyKey: d.IdempotencyKey,
		Resources:      d.Resources,
		Provenance:     d.Provenance,
		Timestamp:      1700000000000,
	}
}
