package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/config"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
program: programs/graph.cue
config:
  evaluation_max_tuples: 10
queries:
  - query: '{path: [1, "?Y"]}'
    expect:
      answers: ["path(1, 2)"]
      count: 1
assertions:
  - type: strata
    count: 2
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "programs", "graph.cue"), scenario.Program)
	require.Len(t, scenario.Queries, 1)
	assert.Equal(t, `{path: [1, "?Y"]}`, scenario.Queries[0].Query)
	require.NotNil(t, scenario.Queries[0].Expect.Count)
	assert.Equal(t, 1, *scenario.Queries[0].Expect.Count)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_AbsoluteProgramKept(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "graph.cue")
	path := writeScenario(t, "name: abs\nprogram: "+abs+"\nqueries:\n  - query: '{p: [1]}'\n")

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, abs, scenario.Program)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "name: x\nprogram: p.cue\nqueries: [{query: '{p: [1]}'}]\nassertion: []\n", "field assertion not found"},
		{"missing name", "program: p.cue\nqueries: [{query: '{p: [1]}'}]\n", "name is required"},
		{"missing program", "name: x\nqueries: [{query: '{p: [1]}'}]\n", "program is required"},
		{"nothing to check", "name: x\nprogram: p.cue\n", "at least one query or assertion"},
		{"empty query", "name: x\nprogram: p.cue\nqueries: [{query: ''}]\n", "queries[0]: query is required"},
		{"error with answers", "name: x\nprogram: p.cue\nqueries: [{query: '{p: [1]}', expect: {error: TIMEOUT, answers: [p(1)]}}]\n", "expect.error excludes"},
		{"unknown assertion", "name: x\nprogram: p.cue\nassertions: [{type: trace_order}]\n", `unknown assertion type "trace_order"`},
		{"assertion without type", "name: x\nprogram: p.cue\nassertions: [{count: 1}]\n", "type is required"},
		{"contains without atoms", "name: x\nprogram: p.cue\nassertions: [{type: relation_contains}]\n", "atoms are required"},
		{"count without predicate", "name: x\nprogram: p.cue\nassertions: [{type: relation_count, count: 1}]\n", "predicate is required"},
		{"negative strata", "name: x\nprogram: p.cue\nassertions: [{type: strata, count: -1}]\n", "count must be non-negative"},
		{"stratifier without name", "name: x\nprogram: p.cue\nassertions: [{type: stratifier}]\n", "name is required for stratifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_CompileErrorNeedsNoQueries(t *testing.T) {
	s, err := ParseScenario([]byte("name: x\nprogram: p.cue\ncompile_error: NOT_STRATIFIED\n"))
	require.NoError(t, err)
	assert.Equal(t, "NOT_STRATIFIED", s.CompileError)
}

func TestScenarioConfig(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: x
program: p.cue
config:
  evaluation_max_tuples: 10
  stratifiers: [global]
  kb:
    windows:
      edge: 1000
queries: [{query: '{p: [1]}'}]
`))
	require.NoError(t, err)

	cfg, err := s.ScenarioConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(10), cfg.EvaluationMaxTuples)
	assert.Equal(t, []string{config.StratifierGlobal}, cfg.Stratifiers)
	assert.Equal(t, uint32(1000), cfg.KB.Windows["edge"])
	// Untouched fields keep their defaults.
	assert.Equal(t, config.Default().Evaluator, cfg.Evaluator)
	assert.True(t, cfg.MagicSets)
}

func TestScenarioConfig_DefaultsAndErrors(t *testing.T) {
	s := &Scenario{Name: "x"}
	cfg, err := s.ScenarioConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Default().Stratifiers, cfg.Stratifiers)

	s.Config = map[string]any{"no_such_option": 1}
	_, err = s.ScenarioConfig()
	require.Error(t, err)

	s.Config = map[string]any{"evaluator": "backwards"}
	_, err = s.ScenarioConfig()
	require.Error(t, err)
}
