package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `
name: resume-after-crash
description: Effect is resumed through a checkpoint.
plan: |
  plan: {
    id:     "p1"
    intent: "i1"
    step: send: {call: "mailer.send", effect: true, key: "K-send"}
  }
suspend: env-v1
resume:
  K-send: [true]
resume_twice: true
assertions:
  - type: trace_count
    kind: Resume
    count: 1
  - type: no_pending
  - type: chain_verifies
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "resume-after-crash", s.Name)
	assert.Contains(t, s.Plan, `id:     "p1"`)
	assert.Equal(t, "env-v1", s.Suspend)
	assert.True(t, s.ResumeTwice)
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, AssertTraceCount, s.Assertions[0].Type)
	assert.Equal(t, "Resume", s.Assertions[0].Kind)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "resume-after-crash", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestScenarioValidate_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		scenario Scenario
		want     string
	}{
		{
			name:     "missing name",
			scenario: Scenario{Plan: "plan: {}"},
			want:     "name is required",
		},
		{
			name:     "missing plan",
			scenario: Scenario{Name: "s"},
			want:     "plan script is required",
		},
		{
			name:     "resume without suspend",
			scenario: Scenario{Name: "s", Plan: "p", Resume: map[string][]any{"k": {1}}},
			want:     "requires suspend",
		},
		{
			name: "resume and cancel",
			scenario: Scenario{
				Name: "s", Plan: "p", Suspend: "e",
				Resume: map[string][]any{"k": {1}}, Cancel: "r",
			},
			want: "mutually exclusive",
		},
		{
			name:     "resume_twice without resume",
			scenario: Scenario{Name: "s", Plan: "p", ResumeTwice: true},
			want:     "resume_twice requires resume",
		},
		{
			name: "trace_count without kind",
			scenario: Scenario{
				Name: "s", Plan: "p",
				Assertions: []Assertion{{Type: AssertTraceCount, Count: 1}},
			},
			want: "trace_count needs kind",
		},
		{
			name: "trace_order with one step",
			scenario: Scenario{
				Name: "s", Plan: "p",
				Assertions: []Assertion{{Type: AssertTraceOrder, Steps: []string{"a"}}},
			},
			want: "trace_order needs at least two steps",
		},
		{
			name: "bad completed state",
			scenario: Scenario{
				Name: "s", Plan: "p",
				Assertions: []Assertion{{Type: AssertCompleted, State: "done"}},
			},
			want: "state must be completed or aborted",
		},
		{
			name: "unknown assertion type",
			scenario: Scenario{
				Name: "s", Plan: "p",
				Assertions: []Assertion{{Type: "trace_matches"}},
			},
			want: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scenario.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
