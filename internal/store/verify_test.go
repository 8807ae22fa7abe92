package store

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyLineage_Intact(t *testing.T) {
	s := createTestStore(t)

	appendTestChain(t, s, "plan-1", 5)

	if err := s.VerifyLineage(context.Background(), "plan-1"); err != nil {
		t.Errorf("VerifyLineage() on intact chain failed: %v", err)
	}
}

func TestVerifyLineage_DetectsTamperedField(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chain := appendTestChain(t, s, "plan-1", 4)

	// Flip a logical field behind the store's back. The stored hash no
	// longer matches a recomputation.
	if _, err := s.db.Exec(
		`UPDATE actions SET cost_micros = 999999 WHERE action_id = ?`,
		chain[2].ActionID,
	); err != nil {
		t.Fatalf("tamper update failed: %v", err)
	}

	err := s.VerifyLineage(ctx, "plan-1")
	var div DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("expected DivergenceError, got %v", err)
	}
	if div.ActionID != chain[2].ActionID {
		t.Errorf("divergence at %s, want %s", div.ActionID, chain[2].ActionID)
	}
	if div.Seq != chain[2].Sequence {
		t.Errorf("divergence seq = %d, want %d", div.Seq, chain[2].Sequence)
	}
}

func TestVerifyLineage_TimestampIsNotHashed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	appendTestChain(t, s, "plan-1", 3)

	// Wall time is informational; rewriting it must not break the chain.
	if _, err := s.db.Exec(`UPDATE actions SET timestamp = 0`); err != nil {
		t.Fatalf("timestamp update failed: %v", err)
	}

	if err := s.VerifyLineage(ctx, "plan-1"); err != nil {
		t.Errorf("VerifyLineage() failed after timestamp rewrite: %v", err)
	}
}

func TestVerifyLineage_DetectsBrokenParentLink(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chain := appendTestChain(t, s, "plan-1", 3)

	if _, err := s.db.Exec(
		`UPDATE actions SET parent_action_id = 'nonexistent' WHERE action_id = ?`,
		chain[1].ActionID,
	); err != nil {
		t.Fatalf("parent rewrite failed: %v", err)
	}

	err := s.VerifyLineage(ctx, "plan-1")
	var div DivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("expected DivergenceError, got %v", err)
	}
	if div.ActionID != chain[1].ActionID {
		t.Errorf("divergence at %s, want %s", div.ActionID, chain[1].ActionID)
	}
}

func TestVerifyRange_MidChain(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	chain := appendTestChain(t, s, "plan-1", 5)

	// A range starting mid-chain resolves the out-of-range parent by id.
	if err := s.VerifyRange(ctx, "plan-1", chain[2].Sequence, chain[4].Sequence); err != nil {
		t.Errorf("VerifyRange() mid-chain failed: %v", err)
	}
}

func TestVerifyLineage_EmptyLineage(t *testing.T) {
	s := createTestStore(t)

	if err := s.VerifyLineage(context.Background(), "no-such-plan"); err != nil {
		t.Errorf("VerifyLineage() on empty lineage should pass: %v", err)
	}
}
