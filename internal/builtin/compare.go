package builtin

import (
	"fmt"

	"github.com/roach88/stratalog/internal/ir"
)

type equality struct{}

// Equal returns the "=" built-in. With one side unbound it binds that side
// to the other.
func Equal() Builtin { return equality{} }

func (equality) Predicate() ir.Predicate  { return ir.Predicate{Symbol: "=", Arity: 2} }
func (equality) Kind() Kind               { return Equality }
func (equality) MaxUnknownVariables() int { return 1 }

func (equality) Evaluate(args ir.Tuple, opts Options) ([]ir.Tuple, error) {
	if err := mustArity("=", args, 2); err != nil {
		return nil, err
	}
	a, b := args[0], args[1]
	switch {
	case a.IsGround() && b.IsGround():
		if Equivalent(a, b, opts) {
			return []ir.Tuple{args}, nil
		}
		return nil, nil
	case a.IsGround():
		return bindTo(b, a)
	case b.IsGround():
		return bindTo(a, b)
	default:
		return nil, fmt.Errorf("=: %w: %s", ErrTooManyUnknowns, args)
	}
}

// bindTo instantiates pattern to value when they unify.
func bindTo(pattern, value ir.Term) ([]ir.Tuple, error) {
	s := ir.Substitution{}
	if !s.Match(pattern, value) {
		return nil, nil
	}
	return []ir.Tuple{{value, value}}, nil
}

type comparison struct {
	symbol string
	accept func(c int) bool
}

func (c comparison) Predicate() ir.Predicate { return ir.Predicate{Symbol: c.symbol, Arity: 2} }
func (comparison) Kind() Kind                { return Comparison }
func (comparison) MaxUnknownVariables() int  { return 0 }

func (c comparison) Evaluate(args ir.Tuple, opts Options) ([]ir.Tuple, error) {
	if err := mustArity(c.symbol, args, 2); err != nil {
		return nil, err
	}
	if !args.IsGround() {
		return nil, fmt.Errorf("%s: %w: %s", c.symbol, ErrTooManyUnknowns, args)
	}
	cmp, ok := Compare(args[0], args[1], opts)
	if c.symbol == "!=" {
		// Incomparable values are unequal.
		if !ok || cmp != 0 {
			return []ir.Tuple{args}, nil
		}
		return nil, nil
	}
	if ok && c.accept(cmp) {
		return []ir.Tuple{args}, nil
	}
	return nil, nil
}

// NotEqual returns the "!=" built-in.
func NotEqual() Builtin {
	return comparison{symbol: "!=", accept: func(c int) bool { return c != 0 }}
}

// Less returns the "<" built-in.
func Less() Builtin { return comparison{symbol: "<", accept: func(c int) bool { return c < 0 }} }

// LessEqual returns the "<=" built-in.
func LessEqual() Builtin { return comparison{symbol: "<=", accept: func(c int) bool { return c <= 0 }} }

// Greater returns the ">" built-in.
func Greater() Builtin { return comparison{symbol: ">", accept: func(c int) bool { return c > 0 }} }

// GreaterEqual returns the ">=" built-in.
func GreaterEqual() Builtin {
	return comparison{symbol: ">=", accept: func(c int) bool { return c >= 0 }}
}
