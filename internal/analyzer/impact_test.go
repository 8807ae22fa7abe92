package analyzer_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/ir"
	"github.com/arclabs/causalchain/internal/store"
)

func openTestChain(t *testing.T) *chain.Chain {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c, err := chain.Open(context.Background(), s,
		chain.WithNow(func() int64 { return 1700000000000 }))
	require.NoError(t, err)
	return c
}

// buildDiamond records a plan where two branches read what one step wrote:
//
//	root -> writer (writes db:cfg, emits value V)
//	root -> left   (consumes V)
//	root -> right  (reads db:cfg)
//	left -> leaf   (consumes left's output)
func buildDiamond(t *testing.T, c *chain.Chain) map[string]ir.Action {
	t.Helper()
	ctx := context.Background()
	actions := make(map[string]ir.Action)

	root, err := c.Append(ctx, ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1"))
	require.NoError(t, err)
	actions["root"] = root

	writer, err := c.Append(ctx, ir.NewDraft(ir.KindCapabilityCall, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("cfg.write").
		WithResources("db:cfg").
		WithResult(ir.Obj("version", ir.Int(7))))
	require.NoError(t, err)
	actions["writer"] = writer

	left, err := c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("render").
		WithArgs(ir.Obj("version", ir.Int(7))).
		WithResult(ir.Str("rendered-7")))
	require.NoError(t, err)
	actions["left"] = left

	right, err := c.Append(ctx, ir.NewDraft(ir.KindCapabilityCall, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("cfg.read").
		WithResources("db:cfg"))
	require.NoError(t, err)
	actions["right"] = right

	leaf, err := c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(left.ActionID).
		WithFunction("publish").
		WithArgs(ir.Str("rendered-7")))
	require.NoError(t, err)
	actions["leaf"] = leaf

	return actions
}

func TestImpact_CoversDependentsAndDescendants(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)

	report, err := c.Analyzer().Impact(context.Background(), actions["writer"].ActionID, 0)
	require.NoError(t, err)

	affected := make(map[string]int)
	for _, n := range report.Affected {
		affected[n.Action.ActionID] = n.Depth
	}

	// left and right depend on writer directly; leaf only through left.
	assert.Equal(t, 1, affected[actions["left"].ActionID])
	assert.Equal(t, 1, affected[actions["right"].ActionID])
	assert.Equal(t, 2, affected[actions["leaf"].ActionID])
	assert.NotContains(t, affected, actions["root"].ActionID, "impact never flows backward")
	assert.NotContains(t, affected, actions["writer"].ActionID, "start is not affected by itself")
}

func TestImpact_CascadeRisks(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)

	report, err := c.Analyzer().Impact(context.Background(), actions["writer"].ActionID, 0)
	require.NoError(t, err)

	// left and right each have exactly one dependency edge and it points at
	// writer: sole-source downstream consumers.
	assert.ElementsMatch(t,
		[]string{actions["left"].ActionID, actions["right"].ActionID},
		report.CascadeRisks)
}

func TestImpact_OrderedBySequence(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)

	report, err := c.Analyzer().Impact(context.Background(), actions["root"].ActionID, 0)
	require.NoError(t, err)

	for i := 1; i < len(report.Affected); i++ {
		assert.Less(t,
			report.Affected[i-1].Action.Sequence,
			report.Affected[i].Action.Sequence,
			"affected nodes are reported in ledger order")
	}
}

func TestImpact_DepthLimit(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)

	report, err := c.Analyzer().Impact(context.Background(), actions["writer"].ActionID, 1)
	require.NoError(t, err)

	for _, n := range report.Affected {
		assert.Equal(t, 1, n.Depth)
		assert.NotEqual(t, actions["leaf"].ActionID, n.Action.ActionID)
	}
}

func TestImpact_MissingAction(t *testing.T) {
	c := openTestChain(t)

	_, err := c.Analyzer().Impact(context.Background(), "missing", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCauses_DependencyEdgesOnly(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)

	causes, err := c.Analyzer().Causes(context.Background(), actions["leaf"].ActionID, 0)
	require.NoError(t, err)

	ids := make([]string, len(causes))
	depths := make(map[string]int, len(causes))
	for i, n := range causes {
		ids[i] = n.Action.ActionID
		depths[n.Action.ActionID] = n.Depth
	}
	// leaf <- left (dependency), left <- writer (dependency). root is a
	// structural ancestor but produced no input, so it is not a cause.
	assert.ElementsMatch(t, []string{
		actions["writer"].ActionID,
		actions["left"].ActionID,
	}, ids)
	assert.Equal(t, 1, depths[actions["left"].ActionID])
	assert.Equal(t, 2, depths[actions["writer"].ActionID])
	assert.NotContains(t, ids, actions["root"].ActionID, "structural parent is not a cause")
	assert.NotContains(t, ids, actions["right"].ActionID, "unrelated branch is not a cause")
}

func TestCauses_DepthLimit(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)

	causes, err := c.Analyzer().Causes(context.Background(), actions["leaf"].ActionID, 1)
	require.NoError(t, err)

	require.Len(t, causes, 1)
	assert.Equal(t, actions["left"].ActionID, causes[0].Action.ActionID)
}

func TestRebuildEdges_ReproducesAppendTimeDetection(t *testing.T) {
	c := openTestChain(t)
	actions := buildDiamond(t, c)
	ctx := context.Background()

	before, err := c.Store().EdgesFrom(ctx, actions["left"].ActionID)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	// Wipe the cache and rebuild from the ledger.
	_, err = c.Store().DB().Exec(`DELETE FROM edges`)
	require.NoError(t, err)

	require.NoError(t, c.Analyzer().RebuildEdges(ctx, "plan-1"))

	after, err := c.Store().EdgesFrom(ctx, actions["left"].ActionID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDependencies_NoProducerNoEdge(t *testing.T) {
	c := openTestChain(t)
	ctx := context.Background()

	root, err := c.Append(ctx, ir.NewDraft(ir.KindPlanStarted, "plan-1", "intent-1"))
	require.NoError(t, err)

	// Consumes a value nothing produced; no edge appears.
	a, err := c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("f").
		WithArgs(ir.Str("never-produced")))
	require.NoError(t, err)

	edges, err := c.Store().EdgesFrom(ctx, a.ActionID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}
