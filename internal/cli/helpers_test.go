package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arclabs/causalchain/internal/chain"
	"github.com/arclabs/causalchain/internal/planspec"
	"github.com/arclabs/causalchain/internal/replay"
	"github.com/arclabs/causalchain/internal/store"
)

const deployScript = `
plan: {
	id:     "deploy-7"
	intent: "intent-42"
	step: build: {call: "builder.make", result: ["image:v7"], cost: 900, duration_ms: 300}
	step: push: {
		call:        "registry.push"
		effect:      true
		key:         "K-push"
		args:        ["image:v7"]
		result:      ["sha256:abc"]
		cost:        1500
		duration_ms: 800
	}
	step: apply: {call: "cluster.apply", args: ["sha256:abc"], resources: ["cluster:prod"], error: "quota exceeded"}
}
`

// seedLedger records the deploy plan into a fresh database and returns the
// path plus the run report for action ids.
func seedLedger(t *testing.T) (string, planspec.RunReport) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	c, err := chain.Open(context.Background(), st)
	require.NoError(t, err)

	spec, err := planspec.LoadString(deployScript)
	require.NoError(t, err)
	report, err := planspec.NewRunner(c).Run(context.Background(), spec)
	require.NoError(t, err)
	return path, report
}

// seedSuspended records a plan that stops at an unresolved effect and
// checkpoints it.
func seedSuspended(t *testing.T) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	c, err := chain.Open(context.Background(), st)
	require.NoError(t, err)

	spec, err := planspec.LoadString(`
plan: {
	id:     "notify-1"
	intent: "intent-9"
	step: page: {call: "pager.trigger", effect: true, key: "K-page", args: ["oncall"]}
}
`)
	require.NoError(t, err)
	report, err := planspec.NewRunner(c).Run(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, report.Suspended)

	cp, err := replay.New(c).Checkpoint(context.Background(), "notify-1", []byte("env-v1"))
	require.NoError(t, err)
	return path, cp.CheckpointID
}

// execute runs the CLI with the given args and captures combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
