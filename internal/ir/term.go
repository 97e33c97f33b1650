package ir

import "strings"

// Term is a variable, a constant or a constructed (function) term.
// This is a sealed interface - only types in this package implement it.
type Term interface {
	term() // unexported marker
	IsGround() bool
	String() string
}

// Variable is a named logic variable. Identity is by name within one rule.
type Variable string

// Constant wraps a ground scalar value.
type Constant struct {
	Value Value
}

// Constructed is a function symbol applied to argument terms, e.g. f(?X, 1).
type Constructed struct {
	Functor string
	Args    []Term
}

func (Variable) term()    {}
func (Constant) term()    {}
func (Constructed) term() {}

func (Variable) IsGround() bool { return false }
func (Constant) IsGround() bool { return true }

func (c Constructed) IsGround() bool {
	for _, a := range c.Args {
		if !a.IsGround() {
			return false
		}
	}
	return true
}

func (v Variable) String() string { return "?" + string(v) }

func (c Constant) String() string {
	if c.Value == nil {
		return "<nil>"
	}
	return c.Value.String()
}

func (c Constructed) String() string {
	var b strings.Builder
	b.WriteString(c.Functor)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Var returns the variable with the given name (without the leading '?').
func Var(name string) Variable { return Variable(name) }

// NewString returns a string constant term.
func NewString(s string) Constant { return Constant{Value: String(s)} }

// NewInt returns an integer constant term.
func NewInt(i int64) Constant { return Constant{Value: Int(i)} }

// NewFloat returns a single precision constant term.
func NewFloat(f float32) Constant { return Constant{Value: Float(f)} }

// NewDouble returns a double precision constant term.
func NewDouble(f float64) Constant { return Constant{Value: Double(f)} }

// NewBool returns a boolean constant term.
func NewBool(b bool) Constant { return Constant{Value: Bool(b)} }

// NewIRI returns an IRI constant term.
func NewIRI(s string) Constant { return Constant{Value: IRI(s)} }

// Fn returns the constructed term functor(args...).
func Fn(functor string, args ...Term) Constructed {
	return Constructed{Functor: functor, Args: args}
}

// Depth returns the nesting depth of constructed terms: 0 for variables and
// constants, 1 + the deepest argument for a constructed term.
func Depth(t Term) int {
	c, ok := t.(Constructed)
	if !ok {
		return 0
	}
	deepest := 0
	for _, a := range c.Args {
		if d := Depth(a); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// TermVariables appends the variables of t to dst in first-occurrence order,
// skipping any already present in seen. seen may be nil.
func TermVariables(dst []Variable, seen map[Variable]bool, t Term) []Variable {
	switch x := t.(type) {
	case Variable:
		if seen != nil {
			if seen[x] {
				return dst
			}
			seen[x] = true
		}
		return append(dst, x)
	case Constructed:
		for _, a := range x.Args {
			dst = TermVariables(dst, seen, a)
		}
	}
	return dst
}

// EqualTerms reports structural equality. Constants of different kinds are
// never equal, so Int(1) and Double(1) are distinct terms.
func EqualTerms(a, b Term) bool {
	switch x := a.(type) {
	case Variable:
		y, ok := b.(Variable)
		return ok && x == y
	case Constant:
		y, ok := b.(Constant)
		return ok && x.Value == y.Value
	case Constructed:
		y, ok := b.(Constructed)
		if !ok || x.Functor != y.Functor || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !EqualTerms(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// CompareTerms orders variables before constants before constructed terms.
func CompareTerms(a, b Term) int {
	ra, rb := termRank(a), termRank(b)
	if ra != rb {
		return compareInts(ra, rb)
	}
	switch x := a.(type) {
	case Variable:
		return strings.Compare(string(x), string(b.(Variable)))
	case Constant:
		return CompareValues(x.Value, b.(Constant).Value)
	case Constructed:
		y := b.(Constructed)
		if c := strings.Compare(x.Functor, y.Functor); c != 0 {
			return c
		}
		if len(x.Args) != len(y.Args) {
			return compareInts(len(x.Args), len(y.Args))
		}
		for i := range x.Args {
			if c := CompareTerms(x.Args[i], y.Args[i]); c != 0 {
				return c
			}
		}
	}
	return 0
}

func termRank(t Term) int {
	switch t.(type) {
	case Variable:
		return 0
	case Constant:
		return 1
	default:
		return 2
	}
}
