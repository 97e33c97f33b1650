package config

import (
	"fmt"
	"slices"
)

// Config error codes.
const (
	ErrCodeUnknownStrategy   = "C001"
	ErrCodeEmptyStrategyList = "C002"
	ErrCodeBadEnum           = "C003"
	ErrCodeOutOfRange        = "C004"
)

// FieldError reports one invalid configuration field.
type FieldError struct {
	Field   string
	Message string
	Code    string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	knownStratifiers  = []string{StratifierGlobal, StratifierLocalStrict, StratifierLocal}
	knownOptimizers   = []string{OptimizerJoinCondition, OptimizerReplaceConstants, OptimizerReorderLiterals, OptimizerRemoveDuplicates}
	knownHeadEquality = []string{HeadEqualityReject, HeadEqualityDrop}
	knownEvaluators   = []string{EvaluatorSemiNaive, EvaluatorNaive}
)

// Validate checks every field and returns all errors found, not just the first.
func (c Config) Validate() []FieldError {
	var errs []FieldError

	switch c.DivideByZero {
	case DivideByZeroStop, DivideByZeroDiscard:
	default:
		errs = append(errs, FieldError{
			Field:   "divide_by_zero",
			Message: fmt.Sprintf("must be %q or %q, got %q", DivideByZeroStop, DivideByZeroDiscard, c.DivideByZero),
			Code:    ErrCodeBadEnum,
		})
	}

	if c.DoublePrecisionBits < 0 || c.DoublePrecisionBits > 52 {
		errs = append(errs, FieldError{Field: "double_precision_bits", Message: "must be in [0, 52]", Code: ErrCodeOutOfRange})
	}
	if c.FloatPrecisionBits < 0 || c.FloatPrecisionBits > 23 {
		errs = append(errs, FieldError{Field: "float_precision_bits", Message: "must be in [0, 23]", Code: ErrCodeOutOfRange})
	}

	if len(c.Stratifiers) == 0 {
		errs = append(errs, FieldError{Field: "stratifiers", Message: "at least one stratifier is required", Code: ErrCodeEmptyStrategyList})
	}
	errs = append(errs, checkNames("stratifiers", c.Stratifiers, knownStratifiers)...)
	errs = append(errs, checkNames("rule_optimizers", c.RuleOptimizers, knownOptimizers)...)
	errs = append(errs, checkNames("head_equality", c.HeadEquality, knownHeadEquality)...)

	if !slices.Contains(knownEvaluators, c.Evaluator) {
		errs = append(errs, FieldError{
			Field:   "evaluator",
			Message: fmt.Sprintf("unknown evaluator %q (valid: %v)", c.Evaluator, knownEvaluators),
			Code:    ErrCodeBadEnum,
		})
	}

	if c.KB.BufferSize < 1 {
		errs = append(errs, FieldError{Field: "kb.buffer_size", Message: "must be at least 1", Code: ErrCodeOutOfRange})
	}
	if c.KB.CacheSize < 0 {
		errs = append(errs, FieldError{Field: "kb.cache_size", Message: "must not be negative", Code: ErrCodeOutOfRange})
	}

	return errs
}

func checkNames(field string, names, known []string) []FieldError {
	var errs []FieldError
	for i, n := range names {
		if !slices.Contains(known, n) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: fmt.Sprintf("unknown strategy %q (valid: %v)", n, known),
				Code:    ErrCodeUnknownStrategy,
			})
		}
	}
	return errs
}
