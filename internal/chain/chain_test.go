package chain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclabs/causalchain/internal/ir"
)

func TestGet(t *testing.T) {
	c := openTestChain(t)
	ctx := context.Background()

	root := startPlan(t, c, "plan-1")

	got, err := c.Get(ctx, root.ActionID)
	require.NoError(t, err)
	assert.Equal(t, root.ActionID, got.ActionID)
	assert.Equal(t, root.Hash, got.Hash)
	assert.Equal(t, ir.KindPlanStarted, got.Kind)

	_, err = c.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestTail(t *testing.T) {
	c := openTestChain(t)
	ctx := context.Background()

	_, ok, err := c.Tail(ctx, "plan-1")
	require.NoError(t, err)
	assert.False(t, ok)

	root := startPlan(t, c, "plan-1")
	last, err := c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("f"))
	require.NoError(t, err)

	tail, ok, err := c.Tail(ctx, "plan-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, last.ActionID, tail.ActionID)
}

func TestVerifyRange_TamperMapsToIntegrity(t *testing.T) {
	c := openTestChain(t)
	ctx := context.Background()

	root := startPlan(t, c, "plan-1")
	mid, err := c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("f").
		WithResult(ir.Int(1)))
	require.NoError(t, err)
	_, err = c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(mid.ActionID).
		WithFunction("g"))
	require.NoError(t, err)

	require.NoError(t, c.VerifyRange(ctx, "plan-1", mid.Sequence, 0))

	_, err = c.Store().DB().Exec(
		`UPDATE actions SET function_name = 'forged' WHERE action_id = ?`, mid.ActionID)
	require.NoError(t, err)

	err = c.VerifyRange(ctx, "plan-1", mid.Sequence, 0)
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, mid.ActionID, ce.ActionID)
}

func TestSummarizeRecent(t *testing.T) {
	c := openTestChain(t)
	ctx := context.Background()

	root := startPlan(t, c, "plan-1")
	_, err := c.Append(ctx, ir.NewDraft(ir.KindPureEval, "plan-1", "intent-1").
		WithParent(root.ActionID).
		WithFunction("f"))
	require.NoError(t, err)
	startPlan(t, c, "plan-2")

	summary, err := c.SummarizeRecent(ctx, 2)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(summary, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "seq=2")
	assert.Contains(t, lines[0], "kind=PureEval")
	assert.Contains(t, lines[1], "seq=3")
	assert.Contains(t, lines[1], "plan=plan-2")

	empty, err := c.SummarizeRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
