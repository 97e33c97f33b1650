package compiler

import (
	"fmt"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// RuleOptimizer rewrites a safe rule into an equivalent one.
type RuleOptimizer interface {
	Name() string
	Optimize(r ir.Rule) ir.Rule
}

// NewOptimizer builds the optimiser registered under name.
func NewOptimizer(name string, reg *builtin.Registry) (RuleOptimizer, error) {
	switch name {
	case config.OptimizerJoinCondition:
		return JoinCondition{Builtins: reg}, nil
	case config.OptimizerReplaceConstants:
		return ReplaceConstants{Builtins: reg}, nil
	case config.OptimizerReorderLiterals:
		return ReorderLiterals{Builtins: reg}, nil
	case config.OptimizerRemoveDuplicates:
		return RemoveDuplicates{}, nil
	default:
		return nil, fmt.Errorf("unknown rule optimizer %q: %w", name, ErrInvalidArgument)
	}
}

// Optimize applies every optimiser in order.
func Optimize(r ir.Rule, optimizers []RuleOptimizer) ir.Rule {
	for _, o := range optimizers {
		r = o.Optimize(r)
	}
	return r
}

// JoinCondition removes ?X = ?Y by renaming ?Y to ?X throughout the rule.
type JoinCondition struct {
	Builtins *builtin.Registry
}

func (JoinCondition) Name() string { return config.OptimizerJoinCondition }

func (o JoinCondition) Optimize(r ir.Rule) ir.Rule {
	for {
		i, eq := findEquality(r, o.Builtins, func(a, b ir.Term) bool {
			_, av := a.(ir.Variable)
			_, bv := b.(ir.Variable)
			return av && bv
		})
		if i < 0 {
			return r
		}
		x, y := eq[0].(ir.Variable), eq[1].(ir.Variable)
		r = dropLiteral(r, i)
		if x != y {
			r = ir.Substitution{y: x}.ApplyRule(r)
		}
	}
}

// ReplaceConstants removes ?X = c, with c ground, by substituting c for ?X.
// Matching then compares c exactly, so a bound value of another numeric kind
// no longer satisfies the rule.
type ReplaceConstants struct {
	Builtins *builtin.Registry
}

func (ReplaceConstants) Name() string { return config.OptimizerReplaceConstants }

func (o ReplaceConstants) Optimize(r ir.Rule) ir.Rule {
	for {
		i, eq := findEquality(r, o.Builtins, func(a, b ir.Term) bool {
			_, av := a.(ir.Variable)
			_, bv := b.(ir.Variable)
			return (av && b.IsGround()) || (bv && a.IsGround())
		})
		if i < 0 {
			return r
		}
		v, c := eq[0], eq[1]
		if _, ok := v.(ir.Variable); !ok {
			v, c = c, v
		}
		r = ir.Substitution{v.(ir.Variable): c}.ApplyRule(dropLiteral(r, i))
	}
}

// findEquality returns the index and arguments of the first positive
// equality in the body whose arguments satisfy accept.
func findEquality(r ir.Rule, reg *builtin.Registry, accept func(a, b ir.Term) bool) (int, [2]ir.Term) {
	for i, l := range r.Body {
		if !l.Positive || len(l.Atom.Tuple) != 2 {
			continue
		}
		b, ok := reg.Lookup(l.Predicate())
		if !ok || b.Kind() != builtin.Equality {
			continue
		}
		if accept(l.Atom.Tuple[0], l.Atom.Tuple[1]) {
			return i, [2]ir.Term{l.Atom.Tuple[0], l.Atom.Tuple[1]}
		}
	}
	return -1, [2]ir.Term{}
}

func dropLiteral(r ir.Rule, i int) ir.Rule {
	body := make([]ir.Literal, 0, len(r.Body)-1)
	body = append(body, r.Body[:i]...)
	body = append(body, r.Body[i+1:]...)
	return ir.Rule{Head: r.Head, Body: body}
}

// ReorderLiterals places negated and built-in literals right after the
// positive literals that bind their variables.
type ReorderLiterals struct {
	Builtins *builtin.Registry
}

func (ReorderLiterals) Name() string { return config.OptimizerReorderLiterals }

func (o ReorderLiterals) Optimize(r ir.Rule) ir.Rule {
	return ir.Rule{Head: r.Head, Body: OrderBody(r.Body, o.Builtins)}
}

// OrderBody returns body in an order the evaluator can run left to right.
// Positive ordinary literals keep their relative order. A built-in is placed
// as soon as no more than MaxUnknownVariables of its variables are unbound,
// a negated literal as soon as all of its variables are bound. Literals that
// never become ready go last, in source order.
func OrderBody(body []ir.Literal, reg *builtin.Registry) []ir.Literal {
	out := make([]ir.Literal, 0, len(body))
	bound := make(map[ir.Variable]bool)
	var pending []ir.Literal

	emit := func(l ir.Literal) {
		out = append(out, l)
		if l.Positive {
			for _, v := range l.Atom.Variables() {
				bound[v] = true
			}
		}
	}
	flush := func() {
		for progress := true; progress; {
			progress = false
			rest := pending[:0]
			for _, l := range pending {
				if literalReady(l, bound, reg) {
					emit(l)
					progress = true
				} else {
					rest = append(rest, l)
				}
			}
			pending = rest
		}
	}

	for _, l := range body {
		if l.Positive && !reg.IsBuiltin(l.Predicate()) {
			emit(l)
			flush()
			continue
		}
		if literalReady(l, bound, reg) {
			emit(l)
			flush()
			continue
		}
		pending = append(pending, l)
	}
	return append(out, pending...)
}

// literalReady reports whether l can be evaluated with the given bindings.
func literalReady(l ir.Literal, bound map[ir.Variable]bool, reg *builtin.Registry) bool {
	open := 0
	for _, v := range l.Atom.Variables() {
		if !bound[v] {
			open++
		}
	}
	b, isBuiltin := reg.Lookup(l.Predicate())
	if isBuiltin && l.Positive {
		return open <= b.MaxUnknownVariables()
	}
	if !isBuiltin && l.Positive {
		return true
	}
	return open == 0
}

// RemoveDuplicates drops body literals equal to an earlier one.
type RemoveDuplicates struct{}

func (RemoveDuplicates) Name() string { return config.OptimizerRemoveDuplicates }

func (RemoveDuplicates) Optimize(r ir.Rule) ir.Rule {
	body := make([]ir.Literal, 0, len(r.Body))
	for _, l := range r.Body {
		dup := false
		for _, kept := range body {
			if ir.EqualLiterals(l, kept) {
				dup = true
				break
			}
		}
		if !dup {
			body = append(body, l)
		}
	}
	return ir.Rule{Head: r.Head, Body: body}
}
