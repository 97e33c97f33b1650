// Package magic implements query-directed rewriting: adornment of predicates
// with bound/free argument patterns, sideways information passing (SIP)
// graphs, and the magic-sets transformation built on them.
package magic

import (
	"errors"
	"strings"

	"github.com/roach88/stratalog/internal/ir"
)

var (
	// ErrMultipleHeads is returned for rules with more than one head literal.
	ErrMultipleHeads = errors.New("rules with multiple head literals cannot be adorned")
	// ErrMultiLiteralQuery is returned for queries with more than one literal.
	ErrMultiLiteralQuery = errors.New("queries with multiple literals cannot be adorned")
)

// Adornment marks each argument position bound ('b') or free ('f').
type Adornment string

const (
	Bound = 'b'
	Free  = 'f'
)

// AdornmentOf adorns a tuple: a position is bound when its term is ground or
// all of its variables are in bound.
func AdornmentOf(t ir.Tuple, bound map[ir.Variable]bool) Adornment {
	var b strings.Builder
	for _, term := range t {
		if termBound(term, bound) {
			b.WriteByte(Bound)
		} else {
			b.WriteByte(Free)
		}
	}
	return Adornment(b.String())
}

func termBound(t ir.Term, bound map[ir.Variable]bool) bool {
	for _, v := range ir.TermVariables(nil, nil, t) {
		if !bound[v] {
			return false
		}
	}
	return true
}

// IsBound reports whether position i is bound.
func (a Adornment) IsBound(i int) bool { return i < len(a) && a[i] == Bound }

// HasBound reports whether any position is bound.
func (a Adornment) HasBound() bool { return strings.IndexByte(string(a), Bound) >= 0 }

// AdornedPredicate is a predicate paired with the binding pattern it is
// evaluated under.
type AdornedPredicate struct {
	Predicate ir.Predicate
	Adornment Adornment
}

// Adorned returns the predicate that holds p's tuples for this pattern,
// named p^bf.
func (ap AdornedPredicate) Adorned() ir.Predicate {
	return ir.Predicate{Symbol: ap.Predicate.Symbol + "^" + string(ap.Adornment), Arity: ap.Predicate.Arity}
}

// Magic returns the predicate holding the bound arguments p is asked for,
// named magic_p^bf. Its arity is the number of bound positions.
func (ap AdornedPredicate) Magic() ir.Predicate {
	return ir.Predicate{
		Symbol: "magic_" + ap.Predicate.Symbol + "^" + string(ap.Adornment),
		Arity:  strings.Count(string(ap.Adornment), string(Bound)),
	}
}

// BoundArgs projects t onto the bound positions.
func (ap AdornedPredicate) BoundArgs(t ir.Tuple) ir.Tuple {
	out := ir.Tuple{}
	for i, term := range t {
		if ap.Adornment.IsBound(i) {
			out = append(out, term)
		}
	}
	return out
}

func (ap AdornedPredicate) String() string {
	return ap.Adorned().String()
}
