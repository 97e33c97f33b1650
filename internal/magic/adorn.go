package magic

import (
	"fmt"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/ir"
)

// AdornedRule is one source rule specialised for one head adornment.
type AdornedRule struct {
	Source ir.Rule
	Head   AdornedPredicate
	// Rule is Source with the head and every positive derived body literal
	// renamed to its adorned predicate.
	Rule ir.Rule
	// Body holds the adorned predicate of each body literal, nil where the
	// literal was left alone (built-ins, base and negated literals).
	Body []*AdornedPredicate
	SIP  *SIP
}

// AdornedProgram is the result of adorning a rule set for one query.
type AdornedProgram struct {
	Query ir.Query
	// Seed is the adorned predicate of the query literal.
	Seed AdornedPredicate
	// Predicates lists adorned predicates in the order they were processed.
	Predicates []AdornedPredicate
	Rules      []AdornedRule
	// Negated lists derived predicates that appear negated; they are
	// evaluated from their source rules rather than adorned.
	Negated []ir.Predicate
}

// Adorn propagates the bound positions of a single-literal query through
// the rules that can derive it.
func Adorn(rules []ir.Rule, query ir.Query, reg *builtin.Registry) (*AdornedProgram, error) {
	if len(query.Literals) != 1 {
		return nil, fmt.Errorf("%w: %s", ErrMultiLiteralQuery, query)
	}
	idb := make(map[ir.Predicate][]ir.Rule)
	for _, r := range rules {
		if len(r.Head) != 1 {
			return nil, fmt.Errorf("%w: %s", ErrMultipleHeads, r)
		}
		idb[r.HeadPredicate()] = append(idb[r.HeadPredicate()], r)
	}

	lit := query.Literals[0]
	seed := AdornedPredicate{
		Predicate: lit.Predicate(),
		Adornment: AdornmentOf(lit.Atom.Tuple, nil),
	}
	out := &AdornedProgram{Query: query, Seed: seed}

	done := map[AdornedPredicate]bool{seed: true}
	negated := make(map[ir.Predicate]bool)
	worklist := []AdornedPredicate{seed}
	for len(worklist) > 0 {
		ap := worklist[0]
		worklist = worklist[1:]
		out.Predicates = append(out.Predicates, ap)

		for _, r := range idb[ap.Predicate] {
			ar := adornRule(r, ap, idb, reg)
			for i, bp := range ar.Body {
				if bp != nil {
					if !done[*bp] {
						done[*bp] = true
						worklist = append(worklist, *bp)
					}
					continue
				}
				l := r.Body[i]
				if !l.Positive && len(idb[l.Predicate()]) > 0 && !negated[l.Predicate()] {
					negated[l.Predicate()] = true
					out.Negated = append(out.Negated, l.Predicate())
				}
			}
			out.Rules = append(out.Rules, ar)
		}
	}
	return out, nil
}

func adornRule(r ir.Rule, ap AdornedPredicate, idb map[ir.Predicate][]ir.Rule, reg *builtin.Registry) AdornedRule {
	sip := BuildSIP(r, ap.Adornment, reg)
	ar := AdornedRule{
		Source: r,
		Head:   ap,
		Body:   make([]*AdornedPredicate, len(r.Body)),
		SIP:    sip,
		Rule: ir.Rule{
			Head: []ir.Literal{ir.Pos(ir.Atom{Predicate: ap.Adorned(), Tuple: r.HeadAtom().Tuple})},
			Body: make([]ir.Literal, len(r.Body)),
		},
	}
	for i, l := range r.Body {
		ar.Rule.Body[i] = l
		if !l.Positive || reg.IsBuiltin(l.Predicate()) || len(idb[l.Predicate()]) == 0 {
			continue
		}
		bound := make(map[ir.Variable]bool)
		for _, v := range sip.BoundBefore(i) {
			bound[v] = true
		}
		bp := AdornedPredicate{Predicate: l.Predicate(), Adornment: AdornmentOf(l.Atom.Tuple, bound)}
		ar.Body[i] = &bp
		ar.Rule.Body[i] = ir.Pos(ir.Atom{Predicate: bp.Adorned(), Tuple: l.Atom.Tuple})
	}
	return ar
}
