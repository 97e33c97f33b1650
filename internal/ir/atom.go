package ir

import (
	"fmt"
	"strings"
)

// Predicate identifies a relation by symbol and arity.
type Predicate struct {
	Symbol string `json:"symbol"`
	Arity  int    `json:"arity"`
}

func (p Predicate) String() string { return fmt.Sprintf("%s/%d", p.Symbol, p.Arity) }

// Tuple is an ordered sequence of terms of fixed arity.
type Tuple []Term

// IsGround reports whether every term of the tuple is ground.
func (t Tuple) IsGround() bool {
	for _, term := range t {
		if !term.IsGround() {
			return false
		}
	}
	return true
}

// Variables returns the distinct variables of the tuple in first-occurrence order.
func (t Tuple) Variables() []Variable {
	seen := make(map[Variable]bool)
	var vars []Variable
	for _, term := range t {
		vars = TermVariables(vars, seen, term)
	}
	return vars
}

// Depth is the deepest constructed-term nesting of any position.
func (t Tuple) Depth() int {
	deepest := 0
	for _, term := range t {
		if d := Depth(term); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// Key returns the canonical identity of the tuple.
func (t Tuple) Key() string {
	return string(appendTuple(nil, t))
}

func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, term := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(term.String())
	}
	b.WriteByte(')')
	return b.String()
}

// CompareTuples orders tuples position by position, shorter first on a tie.
func CompareTuples(a, b Tuple) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareTerms(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInts(len(a), len(b))
}

// Atom is a predicate applied to a tuple.
type Atom struct {
	Predicate Predicate
	Tuple     Tuple
}

// NewAtom builds an atom whose arity is taken from the number of terms.
func NewAtom(symbol string, terms ...Term) Atom {
	return Atom{
		Predicate: Predicate{Symbol: symbol, Arity: len(terms)},
		Tuple:     Tuple(terms),
	}
}

func (a Atom) IsGround() bool { return a.Tuple.IsGround() }

func (a Atom) Variables() []Variable { return a.Tuple.Variables() }

func (a Atom) String() string {
	if len(a.Tuple) == 0 {
		return a.Predicate.Symbol
	}
	return a.Predicate.Symbol + a.Tuple.String()
}

// Literal is an atom with a polarity.
type Literal struct {
	Atom     Atom
	Positive bool
}

// Pos returns the positive literal of a.
func Pos(a Atom) Literal { return Literal{Atom: a, Positive: true} }

// Neg returns the negated literal of a.
func Neg(a Atom) Literal { return Literal{Atom: a, Positive: false} }

func (l Literal) Predicate() Predicate { return l.Atom.Predicate }

func (l Literal) String() string {
	if l.Positive {
		return l.Atom.String()
	}
	return "not " + l.Atom.String()
}

// EqualLiterals reports equal polarity, predicate and terms.
func EqualLiterals(a, b Literal) bool {
	if a.Positive != b.Positive || a.Atom.Predicate != b.Atom.Predicate {
		return false
	}
	for i := range a.Atom.Tuple {
		if !EqualTerms(a.Atom.Tuple[i], b.Atom.Tuple[i]) {
			return false
		}
	}
	return true
}

// Rule is head :- body. Only single-literal heads are evaluated; Head is a
// slice so that sources with several head literals can be represented and
// rejected explicitly.
type Rule struct {
	Head []Literal
	Body []Literal
}

// NewRule builds a rule with one head literal.
func NewRule(head Atom, body ...Literal) Rule {
	return Rule{Head: []Literal{Pos(head)}, Body: body}
}

// HeadAtom returns the first head atom. Callers must have validated that the
// rule has exactly one head literal.
func (r Rule) HeadAtom() Atom { return r.Head[0].Atom }

// HeadPredicate returns the predicate of the first head literal.
func (r Rule) HeadPredicate() Predicate { return r.Head[0].Atom.Predicate }

// Variables returns every variable of the rule, head first, in first-occurrence order.
func (r Rule) Variables() []Variable {
	seen := make(map[Variable]bool)
	var vars []Variable
	for _, l := range r.Head {
		for _, t := range l.Atom.Tuple {
			vars = TermVariables(vars, seen, t)
		}
	}
	for _, l := range r.Body {
		for _, t := range l.Atom.Tuple {
			vars = TermVariables(vars, seen, t)
		}
	}
	return vars
}

func (r Rule) String() string {
	var b strings.Builder
	for i, l := range r.Head {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(l.String())
	}
	if len(r.Body) > 0 {
		b.WriteString(" :- ")
		for i, l := range r.Body {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(l.String())
		}
	}
	b.WriteByte('.')
	return b.String()
}

// Query is a conjunction of literals to be answered.
type Query struct {
	Literals []Literal
}

// NewQuery builds a query from literals.
func NewQuery(lits ...Literal) Query { return Query{Literals: lits} }

// Variables returns the query variables in first-occurrence order. Answers
// are tuples of bindings in this order.
func (q Query) Variables() []Variable {
	seen := make(map[Variable]bool)
	var vars []Variable
	for _, l := range q.Literals {
		for _, t := range l.Atom.Tuple {
			vars = TermVariables(vars, seen, t)
		}
	}
	return vars
}

// RemoveDuplicateLiterals drops literals equal to an earlier one.
func (q Query) RemoveDuplicateLiterals() Query {
	out := make([]Literal, 0, len(q.Literals))
	for _, l := range q.Literals {
		dup := false
		for _, kept := range out {
			if EqualLiterals(kept, l) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, l)
		}
	}
	return Query{Literals: out}
}

func (q Query) String() string {
	var b strings.Builder
	b.WriteString("?- ")
	for i, l := range q.Literals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(l.String())
	}
	b.WriteByte('.')
	return b.String()
}
