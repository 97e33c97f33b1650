package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render prints a result in the golden file layout: the stratification,
// then each query followed by its answers or error code. Run IDs, hashes
// and evaluation statistics are left out.
func (r *Result) Render() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", r.Scenario)
	if r.CompileError != "" {
		fmt.Fprintf(&buf, "compile error: %s\n", r.CompileError)
		return buf.String()
	}
	fmt.Fprintf(&buf, "stratifier: %s\n", r.Stratifier)
	fmt.Fprintf(&buf, "strata: %d\n", r.Strata)
	for _, q := range r.Queries {
		fmt.Fprintf(&buf, "query %s\n", q.Query)
		switch {
		case q.Error != "":
			fmt.Fprintf(&buf, "  error: %s\n", q.Error)
		case len(q.Answers) == 0:
			fmt.Fprintf(&buf, "  no answers\n")
		default:
			for _, a := range q.Answers {
				fmt.Fprintf(&buf, "  %s\n", a)
			}
		}
	}
	return buf.String()
}

// RunWithGolden executes a scenario and compares its rendering against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the rendering doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against the golden file
// named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, []byte(result.Render()))
}
