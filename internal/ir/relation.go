package ir

import (
	"fmt"
	"slices"
	"sort"
)

// Relation is a set of ground tuples of one arity.
// Tuples keep insertion order; membership is by canonical key.
type Relation struct {
	arity  int
	index  map[string]struct{}
	tuples []Tuple
}

// NewRelation returns an empty relation of the given arity.
func NewRelation(arity int) *Relation {
	return &Relation{arity: arity, index: make(map[string]struct{})}
}

// RelationOf builds a relation from tuples, dropping duplicates.
func RelationOf(arity int, tuples ...Tuple) *Relation {
	r := NewRelation(arity)
	for _, t := range tuples {
		r.Add(t)
	}
	return r
}

func (r *Relation) Arity() int { return r.arity }

// Len returns the number of tuples. A nil relation is empty.
func (r *Relation) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tuples)
}

// Add inserts t and reports whether it was new.
// Adding a tuple of the wrong arity or a non-ground tuple is a programming error.
func (r *Relation) Add(t Tuple) bool {
	if len(t) != r.arity {
		panic(fmt.Sprintf("relation arity %d: cannot add tuple of arity %d", r.arity, len(t)))
	}
	if !t.IsGround() {
		panic(fmt.Sprintf("relation: cannot add non-ground tuple %s", t))
	}
	key := t.Key()
	if _, ok := r.index[key]; ok {
		return false
	}
	r.index[key] = struct{}{}
	r.tuples = append(r.tuples, t)
	return true
}

// AddAll inserts every tuple of o and returns how many were new.
func (r *Relation) AddAll(o *Relation) int {
	if o == nil {
		return 0
	}
	n := 0
	for _, t := range o.tuples {
		if r.Add(t) {
			n++
		}
	}
	return n
}

// Contains reports membership by value.
func (r *Relation) Contains(t Tuple) bool {
	if r == nil {
		return false
	}
	_, ok := r.index[t.Key()]
	return ok
}

// Tuples returns the tuples in insertion order. The slice must not be modified.
func (r *Relation) Tuples() []Tuple {
	if r == nil {
		return nil
	}
	return r.tuples
}

// Sorted returns a copy of the tuples in CompareTuples order.
func (r *Relation) Sorted() []Tuple {
	out := slices.Clone(r.Tuples())
	sort.SliceStable(out, func(i, j int) bool { return CompareTuples(out[i], out[j]) < 0 })
	return out
}

// Clone returns an independent copy.
func (r *Relation) Clone() *Relation {
	out := NewRelation(r.arity)
	out.AddAll(r)
	return out
}

// Filter returns a relation holding the tuples for which keep returns true.
func (r *Relation) Filter(keep func(Tuple) bool) *Relation {
	out := NewRelation(r.arity)
	for _, t := range r.Tuples() {
		if keep(t) {
			out.Add(t)
		}
	}
	return out
}

// Equal is set equality. A nil relation equals an empty one.
func (r *Relation) Equal(o *Relation) bool {
	if r.Len() != o.Len() {
		return false
	}
	for _, t := range r.Tuples() {
		if !o.Contains(t) {
			return false
		}
	}
	return true
}

func (r *Relation) String() string {
	return fmt.Sprintf("%v", r.Sorted())
}

// Facts maps predicates to their relations.
type Facts map[Predicate]*Relation

// Add inserts a ground atom, creating the relation on first use.
func (f Facts) Add(a Atom) bool {
	rel, ok := f[a.Predicate]
	if !ok {
		rel = NewRelation(a.Predicate.Arity)
		f[a.Predicate] = rel
	}
	return rel.Add(a.Tuple)
}

// Relation returns the relation of p, or nil.
func (f Facts) Relation(p Predicate) *Relation { return f[p] }

// Len is the total number of tuples.
func (f Facts) Len() int {
	n := 0
	for _, r := range f {
		n += r.Len()
	}
	return n
}

// Clone deep-copies every relation.
func (f Facts) Clone() Facts {
	out := make(Facts, len(f))
	for p, r := range f {
		out[p] = r.Clone()
	}
	return out
}

// Predicates returns the predicates in (symbol, arity) order.
func (f Facts) Predicates() []Predicate {
	out := make([]Predicate, 0, len(f))
	for p := range f {
		out = append(out, p)
	}
	SortPredicates(out)
	return out
}

// Atoms returns every fact as an atom, ordered by predicate then tuple.
func (f Facts) Atoms() []Atom {
	var out []Atom
	for _, p := range f.Predicates() {
		for _, t := range f[p].Sorted() {
			out = append(out, Atom{Predicate: p, Tuple: t})
		}
	}
	return out
}

// Equal compares relation by relation; a missing relation equals an empty one.
func (f Facts) Equal(o Facts) bool {
	for p, r := range f {
		if !r.Equal(o[p]) {
			return false
		}
	}
	for p, r := range o {
		if _, ok := f[p]; !ok && r.Len() > 0 {
			return false
		}
	}
	return true
}

// SortPredicates sorts by symbol, then arity.
func SortPredicates(ps []Predicate) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Symbol != ps[j].Symbol {
			return ps[i].Symbol < ps[j].Symbol
		}
		return ps[i].Arity < ps[j].Arity
	})
}
