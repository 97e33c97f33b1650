package ir

// Substitution maps variables to terms.
type Substitution map[Variable]Term

// Apply replaces every bound variable in t. Unbound variables are kept.
func (s Substitution) Apply(t Term) Term {
	switch x := t.(type) {
	case Variable:
		if v, ok := s[x]; ok {
			return v
		}
		return x
	case Constructed:
		args := make([]Term, len(x.Args))
		for i, a := range x.Args {
			args[i] = s.Apply(a)
		}
		return Constructed{Functor: x.Functor, Args: args}
	default:
		return t
	}
}

// ApplyTuple substitutes into every position of a tuple.
func (s Substitution) ApplyTuple(t Tuple) Tuple {
	out := make(Tuple, len(t))
	for i, term := range t {
		out[i] = s.Apply(term)
	}
	return out
}

// ApplyLiteral substitutes into a literal, keeping its polarity.
func (s Substitution) ApplyLiteral(l Literal) Literal {
	return Literal{
		Atom:     Atom{Predicate: l.Atom.Predicate, Tuple: s.ApplyTuple(l.Atom.Tuple)},
		Positive: l.Positive,
	}
}

// ApplyRule substitutes into head and body.
func (s Substitution) ApplyRule(r Rule) Rule {
	out := Rule{
		Head: make([]Literal, len(r.Head)),
		Body: make([]Literal, len(r.Body)),
	}
	for i, l := range r.Head {
		out.Head[i] = s.ApplyLiteral(l)
	}
	for i, l := range r.Body {
		out.Body[i] = s.ApplyLiteral(l)
	}
	return out
}

// Match extends s so that pattern instantiates to the ground term value.
// It returns false, leaving s in an unspecified state, when no extension exists.
func (s Substitution) Match(pattern, value Term) bool {
	switch p := pattern.(type) {
	case Variable:
		if bound, ok := s[p]; ok {
			return EqualTerms(bound, value)
		}
		s[p] = value
		return true
	case Constant:
		return EqualTerms(p, value)
	case Constructed:
		v, ok := value.(Constructed)
		if !ok || v.Functor != p.Functor || len(v.Args) != len(p.Args) {
			return false
		}
		for i := range p.Args {
			if !s.Match(p.Args[i], v.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a shallow copy.
func (s Substitution) Clone() Substitution {
	out := make(Substitution, len(s)+2)
	for k, v := range s {
		out[k] = v
	}
	return out
}
