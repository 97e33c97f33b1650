// Package config defines the Configuration value passed explicitly into every
// compile, adorn and evaluate call. Nothing reads configuration from ambient
// or per-goroutine state.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stratalog/internal/builtin"
)

// DivideByZero selects what evaluation does when a built-in divides by zero.
type DivideByZero string

const (
	// DivideByZeroStop aborts evaluation with an error.
	DivideByZeroStop DivideByZero = "stop"
	// DivideByZeroDiscard drops the offending binding and continues.
	DivideByZeroDiscard DivideByZero = "discard"
)

// Stratifier names.
const (
	StratifierGlobal      = "global"
	StratifierLocalStrict = "local-strict"
	StratifierLocal       = "local"
)

// Rule optimiser names.
const (
	OptimizerJoinCondition    = "join-condition"
	OptimizerReplaceConstants = "replace-constants"
	OptimizerReorderLiterals  = "reorder-literals"
	OptimizerRemoveDuplicates = "remove-duplicates"
)

// Head equality handler names.
const (
	HeadEqualityReject = "reject"
	HeadEqualityDrop   = "drop"
)

// Evaluator names.
const (
	EvaluatorSemiNaive = "semi-naive"
	EvaluatorNaive     = "naive"
)

// Config holds every evaluation option. The zero value is not useful; start
// from Default.
type Config struct {
	// EvaluationTimeoutMillis bounds wall-clock evaluation time. 0 = unbounded.
	EvaluationTimeoutMillis uint32 `yaml:"evaluation_timeout_ms"`

	// EvaluationMaxTuples bounds the number of derived tuples. 0 = unbounded.
	EvaluationMaxTuples uint32 `yaml:"evaluation_max_tuples"`

	// EvaluationMaxComplexity bounds the nesting depth of constructed terms
	// in derived tuples. 0 = unbounded.
	EvaluationMaxComplexity uint32 `yaml:"evaluation_max_complexity"`

	DivideByZero DivideByZero `yaml:"divide_by_zero"`

	// Precision, in mantissa bits, used when comparing doubles and floats.
	DoublePrecisionBits int `yaml:"double_precision_bits"`
	FloatPrecisionBits  int `yaml:"float_precision_bits"`

	// Strategy lists, each tried or applied in declaration order.
	Stratifiers    []string `yaml:"stratifiers"`
	RuleOptimizers []string `yaml:"rule_optimizers"`
	HeadEquality   []string `yaml:"head_equality"`

	Evaluator string `yaml:"evaluator"`

	// MagicSets rewrites queries with bound arguments before evaluation.
	MagicSets bool `yaml:"magic_sets"`

	Safety Safety `yaml:"safety"`
	KB     KB     `yaml:"kb"`
}

// Safety holds the two independent relaxations of rule safety.
type Safety struct {
	// AllowUnlimitedInNegation tolerates variables that occur only in
	// negated ordinary literals. Default true.
	AllowUnlimitedInNegation bool `yaml:"allow_unlimited_in_negation"`

	// ArithmeticTargetsLimited makes the target of an arithmetic built-in
	// limited once all its operands are limited. Default true.
	ArithmeticTargetsLimited bool `yaml:"arithmetic_targets_limited"`
}

// KB configures the knowledge base around the evaluator.
type KB struct {
	// BufferSize is the number of fact batches held while an evaluation runs.
	BufferSize int `yaml:"buffer_size"`

	// CacheSize is the number of magic-rewritten programs kept per knowledge base.
	CacheSize int `yaml:"cache_size"`

	// Windows maps predicate symbols to a fact lifetime in milliseconds.
	// Predicates without an entry keep facts forever.
	Windows map[string]uint32 `yaml:"windows"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		DivideByZero:        DivideByZeroDiscard,
		DoublePrecisionBits: 42,
		FloatPrecisionBits:  19,
		Stratifiers:         []string{StratifierGlobal, StratifierLocalStrict, StratifierLocal},
		RuleOptimizers: []string{
			OptimizerJoinCondition,
			OptimizerReplaceConstants,
			OptimizerReorderLiterals,
			OptimizerRemoveDuplicates,
		},
		HeadEquality: []string{HeadEqualityReject},
		Evaluator:    EvaluatorSemiNaive,
		MagicSets:    true,
		Safety: Safety{
			AllowUnlimitedInNegation: true,
			ArithmeticTargetsLimited: true,
		},
		KB: KB{
			BufferSize: 64,
			CacheSize:  128,
		},
	}
}

// Timeout returns the evaluation timeout, 0 when unbounded.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.EvaluationTimeoutMillis) * time.Millisecond
}

// Window returns the lifetime of facts of the given predicate symbol, 0 when
// they never expire.
func (c Config) Window(symbol string) time.Duration {
	return time.Duration(c.KB.Windows[symbol]) * time.Millisecond
}

// BuiltinOptions returns the numeric options handed to built-ins.
func (c Config) BuiltinOptions() builtin.Options {
	return builtin.Options{
		DoublePrecisionBits: c.DoublePrecisionBits,
		FloatPrecisionBits:  c.FloatPrecisionBits,
	}
}

// Load reads a YAML file layered over Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML layered over Default. Unknown fields are rejected so that
// typos do not silently fall back to defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid config: %w", errs[0])
	}
	return cfg, nil
}
