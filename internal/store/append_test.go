package store

import (
	"context"
	"errors"
	"testing"

	"github.com/arclabs/causalchain/internal/ir"
)

func TestInsertAction_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d := ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1").
		WithArgs(ir.Str("deploy"), ir.Int(3)).
		WithResources("db:orders").
		WithCost(1500, 20)
	a := buildAction(t, d, "act-1", 1, ir.GenesisSeed)
	a.Provenance = ir.Obj("signed_by", ir.Str("planner"))
	a.Hash = ir.MustActionHash(a.Draft(), a.Sequence, ir.GenesisSeed)

	if err := s.InsertAction(ctx, a, nil, nil); err != nil {
		t.Fatalf("InsertAction() failed: %v", err)
	}

	got, err := s.ActionByID(ctx, "act-1")
	if err != nil {
		t.Fatalf("ActionByID() failed: %v", err)
	}
	if got.Kind != ir.KindPlanStarted {
		t.Errorf("kind = %s, want %s", got.Kind, ir.KindPlanStarted)
	}
	if got.Hash != a.Hash {
		t.Errorf("hash = %s, want %s", got.Hash, a.Hash)
	}
	if len(got.Args) != 2 || got.Args[0] != ir.VString("deploy") || got.Args[1] != ir.VInt(3) {
		t.Errorf("args round trip wrong: %#v", got.Args)
	}
	if len(got.Resources) != 1 || got.Resources[0] != "db:orders" {
		t.Errorf("resources round trip wrong: %#v", got.Resources)
	}
	if got.CostMicros != 1500 || got.DurationMS != 20 {
		t.Errorf("cost = %d/%d, want 1500/20", got.CostMicros, got.DurationMS)
	}
	if got.Provenance["signed_by"] != ir.VString("planner") {
		t.Errorf("provenance round trip wrong: %#v", got.Provenance)
	}
}

func TestInsertAction_SeqCollisionIsTailMoved(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	d := ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1")
	a1 := buildAction(t, d, "act-1", 1, ir.GenesisSeed)
	if err := s.InsertAction(ctx, a1, nil, nil); err != nil {
		t.Fatalf("first InsertAction() failed: %v", err)
	}

	// Second writer racing the same sequence slot.
	d2 := ir.NewDraft(ir.KindPlanStarted, "plan-2", "intent-2")
	a2 := buildAction(t, d2, "act-2", 1, ir.GenesisSeed)
	err := s.InsertAction(ctx, a2, nil, nil)
	if !errors.Is(err, ErrTailMoved) {
		t.Errorf("expected ErrTailMoved, got %v", err)
	}
}

func TestInsertAction_DuplicateIdempotencyKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := buildAction(t, ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1"), "act-root", 1, ir.GenesisSeed)
	if err := s.InsertAction(ctx, root, nil, nil); err != nil {
		t.Fatalf("root InsertAction() failed: %v", err)
	}

	yield := ir.NewDraft(ir.KindYield, "plan-1", "intent-1").
		WithParent("act-root").
		WithFunction("http.get").
		WithIdempotencyKey("K1")
	a1 := buildAction(t, yield, "act-y1", 2, root.Hash)
	if err := s.InsertAction(ctx, a1, nil, nil); err != nil {
		t.Fatalf("yield InsertAction() failed: %v", err)
	}

	// Same key, same kind: the unique index rejects the duplicate.
	a2 := buildAction(t, yield, "act-y2", 3, a1.Hash)
	err := s.InsertAction(ctx, a2, nil, nil)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Same key, different kind: the Resume completing the Yield is allowed.
	resume := ir.NewDraft(ir.KindResume, "plan-1", "intent-1").
		WithParent("act-y1").
		WithFunction("http.get").
		WithIdempotencyKey("K1").
		WithResult(ir.Str("200 OK"))
	a3 := buildAction(t, resume, "act-r1", 3, a1.Hash)
	if err := s.InsertAction(ctx, a3, nil, nil); err != nil {
		t.Errorf("resume with shared key should insert, got %v", err)
	}
}

func TestInsertAction_FailedInsertLeavesNoProducers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := buildAction(t, ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1"), "act-1", 1, ir.GenesisSeed)
	if err := s.InsertAction(ctx, a, nil, nil); err != nil {
		t.Fatalf("InsertAction() failed: %v", err)
	}

	dup := buildAction(t, ir.NewDraft(ir.KindPlanStarted, "plan-2", "intent-2"), "act-2", 1, ir.GenesisSeed)
	producers := []ProducerEntry{{ValueHash: "vh-1", ActionID: "act-2", Seq: 1}}
	if err := s.InsertAction(ctx, dup, producers, nil); err == nil {
		t.Fatal("expected insert to fail")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM producers").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("producers = %d rows after rolled-back insert, want 0", count)
	}
}

func TestTail(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Tail(ctx, "plan-1")
	if err != nil {
		t.Fatalf("Tail() on empty lineage failed: %v", err)
	}
	if ok {
		t.Error("expected no tail for empty lineage")
	}

	actions := appendTestChain(t, s, "plan-1", 3)

	tail, ok, err := s.Tail(ctx, "plan-1")
	if err != nil {
		t.Fatalf("Tail() failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a tail")
	}
	if tail.ActionID != actions[2].ActionID {
		t.Errorf("tail = %s, want %s", tail.ActionID, actions[2].ActionID)
	}
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() on empty store failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty store LastSeq = %d, want 0", seq)
	}

	appendTestChain(t, s, "plan-1", 2)
	appendTestChain(t, s, "plan-2", 1)

	seq, err = s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 3 {
		t.Errorf("LastSeq = %d, want 3", seq)
	}
}

func TestActionByIdempotencyKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	root := buildAction(t, ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1"), "act-root", 1, ir.GenesisSeed)
	if err := s.InsertAction(ctx, root, nil, nil); err != nil {
		t.Fatalf("InsertAction() failed: %v", err)
	}
	yield := ir.NewDraft(ir.KindYield, "plan-1", "intent-1").
		WithParent("act-root").
		WithFunction("http.get").
		WithIdempotencyKey("K1")
	a := buildAction(t, yield, "act-y1", 2, root.Hash)
	if err := s.InsertAction(ctx, a, nil, nil); err != nil {
		t.Fatalf("InsertAction() failed: %v", err)
	}

	got, ok, err := s.ActionByIdempotencyKey(ctx, "plan-1", "K1", ir.KindYield)
	if err != nil {
		t.Fatalf("ActionByIdempotencyKey() failed: %v", err)
	}
	if !ok || got.ActionID != "act-y1" {
		t.Errorf("got %v/%v, want act-y1", got.ActionID, ok)
	}

	_, ok, err = s.ActionByIdempotencyKey(ctx, "plan-1", "K1", ir.KindResume)
	if err != nil {
		t.Fatalf("ActionByIdempotencyKey() failed: %v", err)
	}
	if ok {
		t.Error("no Resume recorded yet, expected ok=false")
	}
}
