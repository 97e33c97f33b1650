package magic

import (
	"fmt"

	"github.com/roach88/stratalog/internal/ir"
)

// Rewritten is a magic-sets program: rules restricted by magic predicates,
// the seed fact carrying the query constants, and the query over the
// adorned answer predicate.
type Rewritten struct {
	Rules []ir.Rule
	Seed  ir.Atom
	Query ir.Query
}

// Rewrite applies the magic-sets transformation to an adorned program.
//
// Every adorned rule p^a(t) :- L1..Ln becomes p^a(t) :- magic_p^a(bound(t)), L1..Ln,
// and every positive derived literal Li = q^b(s) gets the magic rule
// magic_q^b(bound(s)) :- magic_p^a(bound(t)), followed by the literals Li
// depends on in the SIP. sources are the rules the program was adorned from;
// facts are its base facts.
func Rewrite(ap *AdornedProgram, sources []ir.Rule, facts ir.Facts) Rewritten {
	var out Rewritten
	seen := make(map[string]bool)
	add := func(r ir.Rule) {
		key := string(ir.MarshalRule(r))
		if !seen[key] {
			seen[key] = true
			out.Rules = append(out.Rules, r)
		}
	}

	for _, ar := range ap.Rules {
		head := ar.Rule.HeadAtom()
		magicHead := ir.Atom{Predicate: ar.Head.Magic(), Tuple: ar.Head.BoundArgs(head.Tuple)}

		body := make([]ir.Literal, 0, len(ar.Rule.Body)+1)
		body = append(body, ir.Pos(magicHead))
		body = append(body, ar.Rule.Body...)
		add(ir.Rule{Head: ar.Rule.Head, Body: body})

		for i, bp := range ar.Body {
			if bp == nil {
				continue
			}
			lit := ar.Rule.Body[i]
			magicBody := []ir.Literal{ir.Pos(magicHead)}
			for _, j := range ar.SIP.Depends(i) {
				magicBody = append(magicBody, ar.Rule.Body[j])
			}
			add(ir.Rule{
				Head: []ir.Literal{ir.Pos(ir.Atom{Predicate: bp.Magic(), Tuple: bp.BoundArgs(lit.Atom.Tuple)})},
				Body: magicBody,
			})
		}
	}

	// Base facts of a derived predicate reach its adorned copies through a
	// bridge rule.
	for _, p := range ap.Predicates {
		if facts.Relation(p.Predicate).Len() == 0 {
			continue
		}
		args := make(ir.Tuple, p.Predicate.Arity)
		for i := range args {
			args[i] = ir.Var(fmt.Sprintf("A%d", i))
		}
		add(ir.Rule{
			Head: []ir.Literal{ir.Pos(ir.Atom{Predicate: p.Adorned(), Tuple: args})},
			Body: []ir.Literal{
				ir.Pos(ir.Atom{Predicate: p.Magic(), Tuple: p.BoundArgs(args)}),
				ir.Pos(ir.Atom{Predicate: p.Predicate, Tuple: args}),
			},
		})
	}

	for _, r := range negatedClosure(ap.Negated, sources) {
		add(r)
	}

	lit := ap.Query.Literals[0]
	out.Seed = ir.Atom{Predicate: ap.Seed.Magic(), Tuple: ap.Seed.BoundArgs(lit.Atom.Tuple)}
	out.Query = ir.NewQuery(ir.Pos(ir.Atom{Predicate: ap.Seed.Adorned(), Tuple: lit.Atom.Tuple}))
	return out
}

// negatedClosure returns the source rules of every predicate reachable from
// the negated ones, in source order.
func negatedClosure(negated []ir.Predicate, sources []ir.Rule) []ir.Rule {
	byHead := make(map[ir.Predicate][]int)
	for i, r := range sources {
		byHead[r.HeadPredicate()] = append(byHead[r.HeadPredicate()], i)
	}
	keep := make(map[int]bool)
	visited := make(map[ir.Predicate]bool)
	stack := append([]ir.Predicate(nil), negated...)
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[p] {
			continue
		}
		visited[p] = true
		for _, i := range byHead[p] {
			keep[i] = true
			for _, l := range sources[i].Body {
				if _, ok := byHead[l.Predicate()]; ok && !visited[l.Predicate()] {
					stack = append(stack, l.Predicate())
				}
			}
		}
	}
	var out []ir.Rule
	for i, r := range sources {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}
