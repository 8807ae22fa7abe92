package planspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclabs/causalchain/internal/ir"
)

const validScript = `
plan: {
	id:     "deploy-7"
	intent: "intent-release"
	step: fetch: {
		call: "http.get"
		args: ["https://example.com/manifest"]
		effect: true
		key:    "K-fetch"
		result: ["manifest-v7"]
		cost:   500
	}
	step: render: {
		call: "template.render"
		pure: true
		args: ["manifest-v7", {replicas: 3, canary: false}]
		result: ["rendered"]
	}
	step: apply: {
		call:      "cluster.apply"
		args:      ["rendered"]
		resources: ["cluster:prod"]
	}
}
`

func TestLoadString_ValidScript(t *testing.T) {
	spec, err := LoadString(validScript)
	require.NoError(t, err)

	assert.Equal(t, "deploy-7", spec.PlanID)
	assert.Equal(t, "intent-release", spec.IntentID)
	require.Len(t, spec.Steps, 3)

	// Declaration order is preserved.
	assert.Equal(t, "fetch", spec.Steps[0].StepID)
	assert.Equal(t, "render", spec.Steps[1].StepID)
	assert.Equal(t, "apply", spec.Steps[2].StepID)

	fetch := spec.Steps[0]
	assert.True(t, fetch.Effect)
	assert.Equal(t, "K-fetch", fetch.IdempotencyKey)
	assert.Equal(t, int64(500), fetch.CostMicros)
	assert.Equal(t, ir.VArray{ir.VString("manifest-v7")}, fetch.Result)

	render := spec.Steps[1]
	assert.True(t, render.Pure)
	require.Len(t, render.Args, 2)
	obj, ok := render.Args[1].(ir.VObject)
	require.True(t, ok)
	assert.Equal(t, ir.VInt(3), obj["replicas"])
	assert.Equal(t, ir.VBool(false), obj["canary"])

	assert.Equal(t, []string{"cluster:prod"}, spec.Steps[2].Resources)
}

func TestLoadString_MissingCall(t *testing.T) {
	_, err := LoadString(`
plan: {
	id:     "p1"
	intent: "i1"
	step: broken: {args: ["x"]}
}
`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "call", ce.Field)
}

func TestLoadString_RejectsFloats(t *testing.T) {
	_, err := LoadString(`
plan: {
	id:     "p1"
	intent: "i1"
	step: s: {call: "f", args: [0.5]}
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestLoadString_EffectWithoutKey(t *testing.T) {
	_, err := LoadString(`
plan: {
	id:     "p1"
	intent: "i1"
	step: s: {call: "f", effect: true}
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency key")
}

func TestLoadString_BadCUE(t *testing.T) {
	_, err := LoadString(`plan: { id: "p1" intent: }`)
	require.Error(t, err)
}

func TestValidate_AllErrorsReported(t *testing.T) {
	spec := &PlanSpec{
		Steps: []StepSpec{
			{StepID: "a", Call: "", IdempotencyKey: "K"},
			{StepID: "a", Call: "f", Effect: true, IdempotencyKey: "K"},
		},
	}
	errs := Validate(spec)

	codes := make(map[string]bool)
	for _, e := range errs {
		codes[e.Code] = true
	}
	for _, want := range []string{
		ErrPlanIDEmpty, ErrIntentEmpty, ErrStepCallEmpty,
		ErrDuplicateStep, ErrKeyWithoutEffect, ErrDuplicateKey,
	} {
		assert.True(t, codes[want], "missing code %s in %v", want, errs)
	}
}
