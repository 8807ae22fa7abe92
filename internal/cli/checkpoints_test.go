package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoints_ListOpen(t *testing.T) {
	path, cpID := seedSuspended(t)

	out, err := execute(t, "checkpoints", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, cpID)
	assert.Contains(t, out, "lineage=notify-1")
	assert.Contains(t, out, "K-page")
}

func TestCheckpoints_CancelClosesEffects(t *testing.T) {
	path, cpID := seedSuspended(t)

	out, err := execute(t, "checkpoints", "--db", path, "--cancel", cpID, "--reason", "operator abort")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled "+cpID)
	assert.Contains(t, out, "1 effects closed")

	// The checkpoint is consumed and no longer listed.
	out, err = execute(t, "checkpoints", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no open checkpoints")

	// The cancellation landed on the ledger.
	out, err = execute(t, "trace", "--db", path, "notify-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.Contains(t, out, `FAILED "operator abort"`)
}

func TestCheckpoints_CancelNeedsReason(t *testing.T) {
	path, cpID := seedSuspended(t)

	_, err := execute(t, "checkpoints", "--db", path, "--cancel", cpID)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckpoints_CancelUnknown(t *testing.T) {
	path, _ := seedSuspended(t)

	_, err := execute(t, "checkpoints", "--db", path, "--cancel", "cp-missing", "--reason", "r")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
