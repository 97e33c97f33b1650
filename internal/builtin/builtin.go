// Package builtin provides the built-in predicates the evaluator calls
// instead of looking up a relation: equality, comparison and arithmetic.
//
// A built-in receives its argument tuple after the current bindings have been
// substituted and returns every ground instance of that tuple it accepts.
// At most MaxUnknownVariables positions may still be unbound.
package builtin

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/stratalog/internal/ir"
)

// Kind classifies a built-in for safety analysis.
type Kind int

const (
	// Comparison built-ins never bind a variable.
	Comparison Kind = iota + 1
	// Equality binds one side from the other.
	Equality
	// Arithmetic binds its target (last argument) from its operands.
	Arithmetic
)

func (k Kind) String() string {
	switch k {
	case Comparison:
		return "comparison"
	case Equality:
		return "equality"
	case Arithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

var (
	// ErrDivideByZero is returned by DIVIDE and MODULUS for a zero divisor.
	ErrDivideByZero = errors.New("division by zero")
	// ErrTooManyUnknowns is returned when more positions are unbound than the built-in allows.
	ErrTooManyUnknowns = errors.New("too many unbound arguments")
)

// Options carries numeric comparison precision, in mantissa bits.
type Options struct {
	DoublePrecisionBits int
	FloatPrecisionBits  int
}

// DefaultOptions matches the engine defaults: 42 bits for doubles, 19 for floats.
func DefaultOptions() Options {
	return Options{DoublePrecisionBits: 42, FloatPrecisionBits: 19}
}

// Builtin is a predicate evaluated by code rather than by relation lookup.
type Builtin interface {
	Predicate() ir.Predicate
	Kind() Kind
	MaxUnknownVariables() int
	// Evaluate returns the ground instances of args that satisfy the built-in.
	Evaluate(args ir.Tuple, opts Options) ([]ir.Tuple, error)
}

// Registry maps predicates to built-ins. It is read-only once handed to the
// compiler or engine.
type Registry struct {
	builtins map[ir.Predicate]Builtin
}

// NewRegistry returns a registry holding bs.
func NewRegistry(bs ...Builtin) *Registry {
	r := &Registry{builtins: make(map[ir.Predicate]Builtin, len(bs))}
	for _, b := range bs {
		r.builtins[b.Predicate()] = b
	}
	return r
}

// Default returns a registry with every built-in of this package.
func Default() *Registry {
	return NewRegistry(
		Equal(), NotEqual(),
		Less(), LessEqual(), Greater(), GreaterEqual(),
		Add(), Subtract(), Multiply(), Divide(), Modulus(),
	)
}

// Lookup returns the built-in for p.
func (r *Registry) Lookup(p ir.Predicate) (Builtin, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.builtins[p]
	return b, ok
}

// IsBuiltin reports whether p is evaluated by a built-in.
func (r *Registry) IsBuiltin(p ir.Predicate) bool {
	_, ok := r.Lookup(p)
	return ok
}

// Predicates returns every registered predicate, sorted.
func (r *Registry) Predicates() []ir.Predicate {
	out := make([]ir.Predicate, 0, len(r.builtins))
	for p := range r.builtins {
		out = append(out, p)
	}
	ir.SortPredicates(out)
	return out
}

// unknowns returns the indexes of non-ground arguments.
func unknowns(args ir.Tuple) []int {
	var idx []int
	for i, a := range args {
		if !a.IsGround() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Compare orders two ground terms. Numbers of any kind compare numerically
// within the configured precision; other values compare only with their own
// kind. ok is false for incomparable terms.
func Compare(a, b ir.Term, opts Options) (c int, ok bool) {
	ca, aConst := a.(ir.Constant)
	cb, bConst := b.(ir.Constant)
	if !aConst || !bConst {
		if ir.EqualTerms(a, b) {
			return 0, true
		}
		return 0, false
	}
	x, xNum := ir.Numeric(ca.Value)
	y, yNum := ir.Numeric(cb.Value)
	if xNum && yNum {
		if xi, ok := ca.Value.(ir.Int); ok {
			if yi, ok := cb.Value.(ir.Int); ok {
				return ir.CompareValues(xi, yi), true
			}
		}
		bits := opts.DoublePrecisionBits
		if ca.Value.Kind() != ir.KindDouble && cb.Value.Kind() != ir.KindDouble {
			bits = opts.FloatPrecisionBits
		}
		if equalWithin(x, y, bits) {
			return 0, true
		}
		if x < y {
			return -1, true
		}
		return 1, true
	}
	if ca.Value.Kind() != cb.Value.Kind() {
		return 0, false
	}
	return ir.CompareValues(ca.Value, cb.Value), true
}

// Equivalent reports whether two ground terms are equal under Compare.
func Equivalent(a, b ir.Term, opts Options) bool {
	c, ok := Compare(a, b, opts)
	return ok && c == 0
}

// equalWithin treats a and b as equal when they agree in the leading bits of
// the mantissa. bits <= 0 means exact comparison.
func equalWithin(a, b float64, bits int) bool {
	if a == b {
		return true
	}
	if bits <= 0 || math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= math.Ldexp(scale, -bits)
}

func mustArity(name string, args ir.Tuple, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d arguments, got %d", name, n, len(args))
	}
	return nil
}
