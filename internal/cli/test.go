package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stratalog/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Parallel int    // scenarios run at once
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <programs-dir> <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run the scenario harness: each YAML scenario names a program (relative to
programs-dir), config overrides, queries with expected answers or error
codes, and assertions on the evaluated relations. Every scenario's answers
are also compared with scenarios-dir/golden/<file>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  stratalog test ./programs ./scenarios
  stratalog test ./programs ./scenarios --filter "graph_*"
  stratalog test ./programs ./scenarios --update
  stratalog test ./programs ./scenarios --parallel 8
  stratalog test ./programs ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", runtime.GOMAXPROCS(0), "scenarios to run at once (0 = no limit)")

	return cmd
}

func runTests(opts *TestOptions, programsDir, scenariosDir string, cmd *cobra.Command) error {
	if opts.Parallel < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--parallel must be non-negative, got %d", opts.Parallel))
	}
	if _, err := os.Stat(programsDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("programs directory not found: %s", programsDir))
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var hopts []harness.Option
	if opts.Verbose {
		hopts = append(hopts, harness.WithLogger(slog.Default()))
	}

	suite, err := harness.RunAllFrom(ctx, programsDir, scenarioFiles, opts.Parallel, hopts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	// Scenarios run concurrently; golden files and output follow path order.
	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(suite.Outcomes)),
		Total:     len(suite.Outcomes),
	}
	for _, outcome := range suite.Outcomes {
		scenResult := checkOutcome(outcome, opts, formatter)
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// findScenarioFiles lists scenario files, keeping those whose base name
// matches filter.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	files, err := harness.FindScenarios(dir)
	if err != nil || filter == "" {
		return files, err
	}
	var out []string
	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, path)
		}
	}
	return out, nil
}

// checkOutcome compares a scenario's rendered answers with its golden file,
// or rewrites the golden file with --update, and reports the result.
func checkOutcome(outcome harness.Outcome, opts *TestOptions, formatter *OutputFormatter) ScenarioResult {
	w := formatter.Writer
	text := opts.Format != "json"
	fail := func(name string, errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	name := outcome.Scenario
	if name == "" {
		name = filepath.Base(outcome.Path)
	}
	result := outcome.Result
	if result == nil {
		return fail(name, outcome.Errors...)
	}

	goldenPath := goldenFilePath(outcome.Path)
	rendered := result.Render()
	if opts.Update {
		if err := updateGoldenFile(goldenPath, rendered); err != nil {
			return fail(name, fmt.Sprintf("golden update failed: %v", err))
		}
		formatter.VerboseLog("Updated %s", goldenPath)
	} else {
		match, err := compareWithGolden(goldenPath, rendered)
		if err != nil {
			return fail(name, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			return fail(name, "answers do not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return fail(name, result.Errors...)
	}
	if text {
		fmt.Fprintf(w, "✓ %s\n", name)
	}
	return ScenarioResult{Name: name, Pass: true}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func updateGoldenFile(goldenPath, rendered string) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func compareWithGolden(goldenPath, rendered string) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return string(goldenData) == rendered, nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := formatter.JSON(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
