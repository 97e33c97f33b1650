package ir

import "strconv"

// Alpha-equivalence: two atoms are variants when one becomes the other by a
// consistent, one-to-one renaming of variables. p(?X, ?Y, ?X) and
// p(?A, ?B, ?A) are variants; p(?X, ?X) and p(?X, ?Y) are not.

// renamer assigns ?0, ?1, ... to variables in first-occurrence order.
type renamer struct {
	names map[Variable]Variable
}

func newRenamer() *renamer {
	return &renamer{names: make(map[Variable]Variable)}
}

func (r *renamer) term(t Term) Term {
	switch x := t.(type) {
	case Variable:
		if n, ok := r.names[x]; ok {
			return n
		}
		n := Variable(strconv.Itoa(len(r.names)))
		r.names[x] = n
		return n
	case Constructed:
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = r.term(a)
		}
		return Constructed{Functor: x.Functor, Args: args}
	default:
		return t
	}
}

func (r *renamer) literal(l Literal) Literal {
	tuple := make(Tuple, len(l.Atom.Tuple))
	for i, t := range l.Atom.Tuple {
		tuple[i] = r.term(t)
	}
	return Literal{Atom: Atom{Predicate: l.Atom.Predicate, Tuple: tuple}, Positive: l.Positive}
}

// Normalize renames the variables of a to ?0, ?1, ... by first occurrence.
func Normalize(a Atom) Atom {
	return newRenamer().literal(Pos(a)).Atom
}

// VariantKey returns a key equal for exactly the atoms that are alpha-equivalent.
func VariantKey(a Atom) string {
	return string(appendAtom(nil, Normalize(a)))
}

// AlphaEquivalent reports whether a and b are equal up to consistent renaming.
func AlphaEquivalent(a, b Atom) bool {
	return a.Predicate == b.Predicate && VariantKey(a) == VariantKey(b)
}

// QueryVariantKey is VariantKey for whole queries; the renaming is shared
// across literals so that join variables are preserved.
func QueryVariantKey(q Query) string {
	r := newRenamer()
	lits := make([]Literal, len(q.Literals))
	for i, l := range q.Literals {
		lits[i] = r.literal(l)
	}
	return string(appendLiterals(nil, lits))
}
