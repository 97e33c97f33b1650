// Package harness runs conformance scenarios against the evaluator.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: graph_reach
//	description: "What this scenario validates"
//	program: ../programs/graph.cue
//	config:
//	  evaluation_max_tuples: 1000
//	clock_step_ms: 10
//	queries:
//	  - query: '{path: [1, "?Y"]}'
//	    expect:
//	      answers: ["path(1, 2)", "path(1, 3)"]
//	      rewritten: true
//	  - query: '{path: ["?X", "?Y"]}'
//	    expect:
//	      error: TOO_MANY_TUPLES
//	assertions:
//	  - type: relation_count
//	    predicate: path
//	    count: 7
//
// A scenario that sets compile_error expects the program to be rejected
// with that code and runs nothing else.
//
// # Assertion Types
//
//   - relation_contains: every listed atom holds after full evaluation
//   - relation_count: the relations named by predicate hold count tuples
//   - strata: the program has count strata
//   - stratifier: the named strategy stratified the program
//
// # Deterministic Testing
//
// Every evaluation gets a fresh clock that is frozen, or that advances by
// clock_step_ms per reading, so timeouts trigger at the same point on
// every run. Each query is recorded in an in-memory run log with IDs
// "<scenario>-1", "<scenario>-2", ... and replayed from it; a replay that
// does not reproduce the answer fails the scenario.
//
// Results render to a stable text form compared against golden files in
// testdata/golden.
package harness
