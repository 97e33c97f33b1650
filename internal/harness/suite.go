package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SuiteResult summarises a run over many scenario files.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
	// Results holds one entry per scenario that ran, in path order.
	Results []*Result `json:"results"`
	// Outcomes holds one entry per path, in path order.
	Outcomes []Outcome `json:"-"`
}

// ScenarioFailure represents a failed or unrunnable scenario.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Scenario     string   `json:"scenario,omitempty"`
	Errors       []string `json:"errors"`
}

// Outcome is what became of one scenario file. Result is nil when the
// scenario could not be loaded or set up; Errors then says why.
type Outcome struct {
	Path     string
	Scenario string
	Result   *Result
	Errors   []string
}

// Pass reports whether the scenario ran and met every expectation.
func (o Outcome) Pass() bool { return o.Result != nil && o.Result.Pass }

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// RunAll loads and runs scenario files with at most parallel running at
// once; parallel < 1 means no limit. Program paths resolve against each
// scenario file's directory.
func RunAll(ctx context.Context, paths []string, parallel int, opts ...Option) (*SuiteResult, error) {
	return RunAllFrom(ctx, "", paths, parallel, opts...)
}

// RunAllFrom is RunAll with relative program paths resolved against
// programsDir. An empty programsDir resolves them against each scenario
// file's directory.
//
// Each scenario gets its own config, engine and in-memory run log, so they
// share nothing. A scenario that cannot be loaded or set up counts as
// failed; RunAllFrom itself only fails when ctx is cancelled.
func RunAllFrom(ctx context.Context, programsDir string, paths []string, parallel int, opts ...Option) (*SuiteResult, error) {
	outcomes := make([]Outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = runOne(gctx, programsDir, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{TotalScenarios: len(paths), Results: []*Result{}, Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Result != nil {
			suite.Results = append(suite.Results, o.Result)
		}
		if !o.Pass() {
			suite.Failed++
			suite.Failures = append(suite.Failures, ScenarioFailure{
				ScenarioPath: o.Path,
				Scenario:     o.Scenario,
				Errors:       o.Errors,
			})
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func runOne(ctx context.Context, programsDir, path string, opts []Option) Outcome {
	out := Outcome{Path: path}
	base := programsDir
	if base == "" {
		base = filepath.Dir(path)
	}
	scenario, err := LoadScenarioWithBasePath(path, base)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Scenario = scenario.Name

	res, err := Run(ctx, scenario, opts...)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
		return out
	}
	out.Result = res
	out.Errors = res.Errors
	return out
}
