package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stratalog/internal/config"
)

// Scenario defines a conformance test scenario: a program, the config to
// evaluate it under, queries with expected answers and assertions on the
// evaluated relations.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of a .cue file or directory holding facts and
	// rules. Relative paths resolve against the scenario file.
	Program string `yaml:"program"`

	// Config holds overrides layered over config.Default, in the config
	// file layout.
	Config map[string]any `yaml:"config,omitempty"`

	// ClockStepMillis advances the evaluation clock by this much on every
	// reading. Zero freezes it.
	ClockStepMillis uint32 `yaml:"clock_step_ms,omitempty"`

	// CompileError is the expected error code when the program must not
	// compile. Queries and assertions are skipped.
	CompileError string `yaml:"compile_error,omitempty"`

	Queries []QueryStep `yaml:"queries"`

	// Assertions validate the fully evaluated program.
	// Supported types: relation_contains, relation_count, strata, stratifier
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryStep is one query and, optionally, what it must produce.
type QueryStep struct {
	// Query is a CUE expression: one literal or a list of literals.
	Query string `yaml:"query"`

	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a query. Only the fields
// given are checked.
type ExpectClause struct {
	// Answers lists every instantiated query literal, in any order.
	Answers []string `yaml:"answers,omitempty"`

	// Count is the expected number of solutions.
	Count *int `yaml:"count,omitempty"`

	// Error is the expected error code, e.g. TOO_MANY_TUPLES.
	Error string `yaml:"error,omitempty"`

	Rewritten *bool `yaml:"rewritten,omitempty"`
}

// Assertion validates the evaluated relations or the strata.
type Assertion struct {
	// Type specifies the assertion type:
	// - "relation_contains": every atom in Atoms holds
	// - "relation_count": the relation of Predicate holds Count tuples
	// - "strata": the program has Count strata
	// - "stratifier": the strategy named Name stratified the program
	Type string `yaml:"type"`

	// Atoms are written as they print, e.g. "path(1, 2)".
	Atoms []string `yaml:"atoms,omitempty"`

	// Predicate is a symbol; all arities with that symbol are counted.
	Predicate string `yaml:"predicate,omitempty"`

	Count int `yaml:"count,omitempty"`

	Name string `yaml:"name,omitempty"`
}

// Assertion type constants.
const (
	AssertRelationContains = "relation_contains"
	AssertRelationCount    = "relation_count"
	AssertStrata           = "strata"
	AssertStratifier       = "stratifier"
)

// LoadScenario reads and parses a scenario YAML file. The program path
// resolves against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the program path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(scenario.Program) && basePath != "" {
		scenario.Program = filepath.Join(basePath, scenario.Program)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative program paths are left as
// they are.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ScenarioConfig returns config.Default with the scenario's overrides
// applied and validated.
func (s *Scenario) ScenarioConfig() (config.Config, error) {
	if len(s.Config) == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(s.Config)
	if err != nil {
		return config.Config{}, fmt.Errorf("scenario %s: config: %w", s.Name, err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return config.Config{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return cfg, nil
}

// validateScenario checks that all required fields are present.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if s.CompileError == "" && len(s.Queries) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("at least one query or assertion is required")
	}

	for i, q := range s.Queries {
		if q.Query == "" {
			return fmt.Errorf("queries[%d]: query is required", i)
		}
		if q.Expect != nil && q.Expect.Error != "" && (len(q.Expect.Answers) > 0 || q.Expect.Count != nil) {
			return fmt.Errorf("queries[%d]: expect.error excludes answers and count", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks that an assertion has required fields for its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRelationContains:
		if len(a.Atoms) == 0 {
			return fmt.Errorf("assertions[%d]: atoms are required for relation_contains", index)
		}
	case AssertRelationCount:
		if a.Predicate == "" {
			return fmt.Errorf("assertions[%d]: predicate is required for relation_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for relation_count", index)
		}
	case AssertStrata:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for strata", index)
		}
	case AssertStratifier:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for stratifier", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
