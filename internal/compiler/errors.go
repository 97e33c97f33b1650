package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/stratalog/internal/ir"
)

// ErrInvalidArgument marks contract violations at the API boundary: a nil
// program, an empty query, an invalid configuration.
var ErrInvalidArgument = errors.New("invalid argument")

// RuleUnsafeError reports variables of a rule that are not limited.
type RuleUnsafeError struct {
	Rule      ir.Rule
	Variables []ir.Variable // sorted by name
}

func (e *RuleUnsafeError) Error() string {
	names := make([]string, len(e.Variables))
	for i, v := range e.Variables {
		names[i] = v.String()
	}
	return fmt.Sprintf("rule is unsafe: %s: unlimited variables %s", e.Rule, strings.Join(names, ", "))
}

// NotStratifiedError reports a program with recursion through negation.
// Cycle is a closed path of predicates whose first step is the negative
// dependency: Cycle[0] depends negatively on Cycle[1], and the path returns
// to Cycle[0].
type NotStratifiedError struct {
	Strategy string
	Cycle    []ir.Predicate
}

func (e *NotStratifiedError) Error() string {
	if len(e.Cycle) < 2 {
		return fmt.Sprintf("program is not stratifiable (%s)", e.Strategy)
	}
	parts := make([]string, len(e.Cycle))
	for i, p := range e.Cycle {
		parts[i] = p.String()
	}
	parts[1] = "not " + parts[1]
	return fmt.Sprintf("program is not stratifiable (%s): negative cycle %s", e.Strategy, strings.Join(parts, " -> "))
}

// HeadEqualityError reports a rule whose head is an equality built-in.
type HeadEqualityError struct {
	Rule ir.Rule
}

func (e *HeadEqualityError) Error() string {
	return fmt.Sprintf("rule head is an equality: %s", e.Rule)
}

// IsRuleUnsafe reports whether err is or wraps a RuleUnsafeError.
func IsRuleUnsafe(err error) bool {
	var target *RuleUnsafeError
	return errors.As(err, &target)
}

// IsNotStratified reports whether err is or wraps a NotStratifiedError.
func IsNotStratified(err error) bool {
	var target *NotStratifiedError
	return errors.As(err, &target)
}

// CompileError represents a source error with position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
