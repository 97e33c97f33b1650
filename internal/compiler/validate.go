package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrMultipleHeadLiterals = "E101" // more than one head literal
	ErrNegatedHead          = "E102" // head literal is negated
	ErrNonGroundFact        = "E103" // fact contains a variable
	ErrEmptyHead            = "E104" // rule has no head
	ErrBuiltinHead          = "E105" // head is a built-in other than equality
	ErrEmptyQuery           = "E106" // query has no literals
	ErrArityMismatch        = "E107" // predicate arity differs from tuple length
	ErrReservedSymbol       = "E108" // symbol uses the reserved '^'
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every error found in one validation pass.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateFacts checks fact predicates. Relations only ever hold ground
// tuples of their arity, so tuples need no check here; see ValidateFact.
func ValidateFacts(facts ir.Facts) []ValidationError {
	var errs []ValidationError
	for _, p := range facts.Predicates() {
		if strings.Contains(p.Symbol, "^") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("facts.%s", p),
				Message: "'^' is reserved for adorned predicates",
				Code:    ErrReservedSymbol,
			})
		}
	}
	return errs
}

// ValidateFact checks one fact before it is added to a relation.
func ValidateFact(field string, a ir.Atom) []ValidationError {
	errs := validateAtom(field, a)
	if !a.IsGround() {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("fact %s is not ground", a), Code: ErrNonGroundFact})
	}
	return errs
}

// ValidateRules checks rule shape. It does not check safety or
// stratification.
// Returns all errors found (does not fail-fast).
func ValidateRules(rules []ir.Rule, reg *builtin.Registry) []ValidationError {
	var errs []ValidationError
	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)

		switch {
		case len(r.Head) == 0:
			errs = append(errs, ValidationError{Field: field, Message: "rule has no head", Code: ErrEmptyHead})
			continue
		case len(r.Head) > 1:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("rule has %d head literals, exactly one is supported", len(r.Head)),
				Code:    ErrMultipleHeadLiterals,
			})
		}

		head := r.Head[0]
		if !head.Positive {
			errs = append(errs, ValidationError{Field: field + ".head", Message: "head literal must be positive", Code: ErrNegatedHead})
		}
		if b, ok := reg.Lookup(head.Predicate()); ok && b.Kind() != builtin.Equality {
			errs = append(errs, ValidationError{
				Field:   field + ".head",
				Message: fmt.Sprintf("built-in %s cannot be derived", head.Predicate()),
				Code:    ErrBuiltinHead,
			})
		}

		for _, l := range r.Head {
			errs = append(errs, validateAtom(field+".head", l.Atom)...)
		}
		for j, l := range r.Body {
			errs = append(errs, validateAtom(fmt.Sprintf("%s.body[%d]", field, j), l.Atom)...)
		}
	}
	return errs
}

// ValidateQuery checks a query before evaluation.
func ValidateQuery(q ir.Query) []ValidationError {
	if len(q.Literals) == 0 {
		return []ValidationError{{Field: "query", Message: "query has no literals", Code: ErrEmptyQuery}}
	}
	var errs []ValidationError
	for i, l := range q.Literals {
		errs = append(errs, validateAtom(fmt.Sprintf("query[%d]", i), l.Atom)...)
	}
	return errs
}

func validateAtom(field string, a ir.Atom) []ValidationError {
	var errs []ValidationError
	if len(a.Tuple) != a.Predicate.Arity {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s used with %d arguments", a.Predicate, len(a.Tuple)),
			Code:    ErrArityMismatch,
		})
	}
	if strings.Contains(a.Predicate.Symbol, "^") {
		errs = append(errs, ValidationError{Field: field, Message: "'^' is reserved for adorned predicates", Code: ErrReservedSymbol})
	}
	return errs
}
