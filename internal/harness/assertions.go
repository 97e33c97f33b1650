package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/ir"
)

// AssertionContext is what assertions are checked against.
type AssertionContext struct {
	// Facts holds every relation after full evaluation.
	Facts   ir.Facts
	Program *compiler.Program
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	// Relation lists the tuples of the relation involved, if any.
	Relation []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Relation) > 0 {
		fmt.Fprintf(&buf, "\nRelation:\n")
		for i, a := range e.Relation {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, a)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertRelationContains:
		return assertRelationContains(actx.Facts, a)
	case AssertRelationCount:
		return assertRelationCount(actx.Facts, a)
	case AssertStrata:
		if got := len(actx.Program.Strata); got != a.Count {
			return &AssertionError{
				Type:     AssertStrata,
				Expected: fmt.Sprintf("%d strata", a.Count),
				Actual:   fmt.Sprintf("%d strata", got),
			}
		}
	case AssertStratifier:
		if actx.Program.Stratifier != a.Name {
			return &AssertionError{
				Type:     AssertStratifier,
				Expected: fmt.Sprintf("stratified by %s", a.Name),
				Actual:   fmt.Sprintf("stratified by %s", actx.Program.Stratifier),
			}
		}
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

// assertRelationContains checks that every listed atom holds. Atoms are
// compared in their printed form.
func assertRelationContains(facts ir.Facts, a Assertion) error {
	held := make(map[string]bool)
	for _, atom := range facts.Atoms() {
		held[atom.String()] = true
	}
	var missing []string
	for _, want := range a.Atoms {
		if !held[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertRelationContains,
		Expected: strings.Join(a.Atoms, ", "),
		Actual:   "missing " + strings.Join(missing, ", "),
		Relation: relationOf(facts, symbolOf(missing[0])),
	}
}

// assertRelationCount checks the number of tuples over every predicate
// named a.Predicate.
func assertRelationCount(facts ir.Facts, a Assertion) error {
	count := 0
	for _, p := range facts.Predicates() {
		if p.Symbol == a.Predicate {
			count += facts.Relation(p).Len()
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertRelationCount,
			Expected: fmt.Sprintf("%d tuples of %s", a.Count, a.Predicate),
			Actual:   fmt.Sprintf("%d tuples", count),
			Relation: relationOf(facts, a.Predicate),
		}
	}
	return nil
}

// relationOf prints every atom whose predicate symbol is symbol, sorted.
func relationOf(facts ir.Facts, symbol string) []string {
	var out []string
	for _, atom := range facts.Atoms() {
		if atom.Predicate.Symbol == symbol {
			out = append(out, atom.String())
		}
	}
	sort.Strings(out)
	return out
}

// symbolOf returns the predicate symbol of a printed atom.
func symbolOf(atom string) string {
	if i := strings.IndexByte(atom, '('); i >= 0 {
		return atom[:i]
	}
	return atom
}
