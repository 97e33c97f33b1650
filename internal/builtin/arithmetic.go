package builtin

import (
	"fmt"
	"math"

	"github.com/roach88/stratalog/internal/ir"
)

// solver computes one position of x op y = z from the other two.
// ok is false when no value exists.
type solver func(a, b ir.Value) (v ir.Value, ok bool, err error)

// arithmetic is a ternary built-in X op Y = Z. Z is the target.
type arithmetic struct {
	symbol string
	apply  solver // z from (x, y)
	solveX solver // x from (y, z)
	solveY solver // y from (x, z)
}

func (a arithmetic) Predicate() ir.Predicate { return ir.Predicate{Symbol: a.symbol, Arity: 3} }
func (arithmetic) Kind() Kind                { return Arithmetic }
func (arithmetic) MaxUnknownVariables() int  { return 1 }

func (a arithmetic) Evaluate(args ir.Tuple, opts Options) ([]ir.Tuple, error) {
	if err := mustArity(a.symbol, args, 3); err != nil {
		return nil, err
	}
	unknown := unknowns(args)
	if len(unknown) > 1 {
		return nil, fmt.Errorf("%s: %w: %s", a.symbol, ErrTooManyUnknowns, args)
	}

	values := make([]ir.Value, 3)
	for i, t := range args {
		if c, ok := t.(ir.Constant); ok {
			values[i] = c.Value
		} else if t.IsGround() {
			// Constructed terms have no arithmetic.
			return nil, nil
		}
	}

	if len(unknown) == 0 {
		z, ok, err := a.apply(values[0], values[1])
		if err != nil || !ok {
			return nil, err
		}
		if Equivalent(ir.Constant{Value: z}, args[2], opts) {
			return []ir.Tuple{args}, nil
		}
		return nil, nil
	}

	pos := unknown[0]
	if _, ok := args[pos].(ir.Variable); !ok {
		return nil, nil
	}
	var (
		v   ir.Value
		ok  bool
		err error
	)
	switch pos {
	case 0:
		v, ok, err = a.solveX(values[1], values[2])
	case 1:
		v, ok, err = a.solveY(values[0], values[2])
	case 2:
		v, ok, err = a.apply(values[0], values[1])
	}
	if err != nil || !ok {
		return nil, err
	}
	if pos != 2 {
		// Inverse modes may round (integer division); keep only exact solutions.
		values[pos] = v
		z, ok, err := a.apply(values[0], values[1])
		if err != nil || !ok {
			return nil, err
		}
		if !Equivalent(ir.Constant{Value: z}, args[2], opts) {
			return nil, nil
		}
	}
	out := make(ir.Tuple, 3)
	copy(out, args)
	out[pos] = ir.Constant{Value: v}
	return []ir.Tuple{out}, nil
}

// numeric applies ints when both operands are Int, otherwise floats, and
// returns a result of the widest operand kind (Double > Float > Int).
func numeric(
	a, b ir.Value,
	ints func(x, y int64) (int64, bool, error),
	floats func(x, y float64) (float64, bool, error),
) (ir.Value, bool, error) {
	x, xOK := ir.Numeric(a)
	y, yOK := ir.Numeric(b)
	if !xOK || !yOK {
		return nil, false, nil
	}
	ai, aInt := a.(ir.Int)
	bi, bInt := b.(ir.Int)
	if aInt && bInt {
		r, ok, err := ints(int64(ai), int64(bi))
		if err != nil || !ok {
			return nil, ok, err
		}
		return ir.Int(r), true, nil
	}
	r, ok, err := floats(x, y)
	if err != nil || !ok {
		return nil, ok, err
	}
	if a.Kind() == ir.KindDouble || b.Kind() == ir.KindDouble {
		return ir.Double(r), true, nil
	}
	return ir.Float(float32(r)), true, nil
}

// addInt, subInt and mulInt report ok=false when the result does not fit
// in an int64.
func addInt(x, y int64) (int64, bool, error) {
	s := x + y
	return s, (x^s)&(y^s) >= 0, nil
}

func subInt(x, y int64) (int64, bool, error) {
	d := x - y
	return d, (x^y)&(x^d) >= 0, nil
}

func mulInt(x, y int64) (int64, bool, error) {
	if x == 0 || y == 0 {
		return 0, true, nil
	}
	p := x * y
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) || p/y != x {
		return 0, false, nil
	}
	return p, true, nil
}

func add(a, b ir.Value) (ir.Value, bool, error) {
	return numeric(a, b,
		addInt,
		func(x, y float64) (float64, bool, error) { return x + y, true, nil })
}

func sub(a, b ir.Value) (ir.Value, bool, error) {
	return numeric(a, b,
		subInt,
		func(x, y float64) (float64, bool, error) { return x - y, true, nil })
}

func mul(a, b ir.Value) (ir.Value, bool, error) {
	return numeric(a, b,
		mulInt,
		func(x, y float64) (float64, bool, error) { return x * y, true, nil })
}

func div(a, b ir.Value) (ir.Value, bool, error) {
	return numeric(a, b,
		func(x, y int64) (int64, bool, error) {
			if y == 0 {
				return 0, false, ErrDivideByZero
			}
			if x == math.MinInt64 && y == -1 {
				return 0, false, nil // overflows
			}
			return x / y, true, nil
		},
		func(x, y float64) (float64, bool, error) {
			if y == 0 {
				return 0, false, ErrDivideByZero
			}
			return x / y, true, nil
		})
}

func mod(a, b ir.Value) (ir.Value, bool, error) {
	return numeric(a, b,
		func(x, y int64) (int64, bool, error) {
			if y == 0 {
				return 0, false, ErrDivideByZero
			}
			return x % y, true, nil
		},
		func(x, y float64) (float64, bool, error) {
			if y == 0 {
				return 0, false, ErrDivideByZero
			}
			return math.Mod(x, y), true, nil
		})
}

// quotient is div for inverse modes: a zero divisor yields no solution
// instead of ErrDivideByZero.
func quotient(z, y ir.Value) (ir.Value, bool, error) {
	if n, ok := ir.Numeric(y); ok && n == 0 {
		return nil, false, nil
	}
	return div(z, y)
}

func flip(s solver) solver {
	return func(a, b ir.Value) (ir.Value, bool, error) { return s(b, a) }
}

func noSolution(ir.Value, ir.Value) (ir.Value, bool, error) { return nil, false, nil }

// Add returns ADD(X, Y, Z): X + Y = Z.
func Add() Builtin {
	return arithmetic{
		symbol: "ADD",
		apply:  add,
		solveX: flip(sub), // x = z - y
		solveY: flip(sub), // y = z - x
	}
}

// Subtract returns SUBTRACT(X, Y, Z): X - Y = Z.
func Subtract() Builtin {
	return arithmetic{
		symbol: "SUBTRACT",
		apply:  sub,
		solveX: add, // x = y + z
		solveY: sub, // y = x - z
	}
}

// Multiply returns MULTIPLY(X, Y, Z): X * Y = Z.
func Multiply() Builtin {
	return arithmetic{
		symbol: "MULTIPLY",
		apply:  mul,
		solveX: flip(quotient), // x = z / y
		solveY: flip(quotient), // y = z / x
	}
}

// Divide returns DIVIDE(X, Y, Z): X / Y = Z. Integer division truncates;
// solving for X yields Z * Y.
func Divide() Builtin {
	return arithmetic{
		symbol: "DIVIDE",
		apply:  div,
		solveX: mul,      // x = y * z
		solveY: quotient, // y = x / z
	}
}

// Modulus returns MODULUS(X, Y, Z): X mod Y = Z. Only the target can be solved.
func Modulus() Builtin {
	return arithmetic{
		symbol: "MODULUS",
		apply:  mod,
		solveX: noSolution,
		solveY: noSolution,
	}
}
