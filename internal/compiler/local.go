package compiler

import (
	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Local stratifies rules rather than predicates. A body literal depends only
// on the rules whose head can match it, so p(1) :- not p(2). stratifies even
// though p depends negatively on itself.
//
// Strict treats numerically equal constants of different kinds (1 and 1.0)
// as matching; the evaluator never does, so strict keeps dependencies the
// non-strict strategy safely ignores.
type Local struct {
	Builtins *builtin.Registry
	Strict   bool
}

func (l *Local) Name() string {
	if l.Strict {
		return config.StratifierLocalStrict
	}
	return config.StratifierLocal
}

func (l *Local) Stratify(rules []ir.Rule) ([][]ir.Rule, error) {
	// deps[i] lists (j, negative) for every rule j whose head can feed a body
	// literal of rule i.
	type dep struct {
		rule     int
		negative bool
	}
	deps := make([][]dep, len(rules))
	for i, r := range rules {
		for _, lit := range r.Body {
			if l.Builtins.IsBuiltin(lit.Predicate()) {
				continue
			}
			for j, other := range rules {
				if l.canMatch(other.HeadAtom(), lit.Atom) {
					deps[i] = append(deps[i], dep{rule: j, negative: !lit.Positive})
				}
			}
		}
	}

	strata := make([]int, len(rules))
	for i := range strata {
		strata[i] = 1
	}
	limit := len(rules)
	for changed := true; changed; {
		changed = false
		for i := range rules {
			for _, d := range deps[i] {
				need := strata[d.rule]
				if d.negative {
					need++
				}
				if strata[i] < need {
					strata[i] = need
					changed = true
				}
				if strata[i] > limit {
					return nil, &NotStratifiedError{
						Strategy: l.Name(),
						Cycle:    negativeCycle(rules, l.Builtins),
					}
				}
			}
		}
	}

	byStratum := make(map[int][]ir.Rule)
	for i, r := range rules {
		byStratum[strata[i]] = append(byStratum[strata[i]], r)
	}
	return groupStrata(byStratum), nil
}

// canMatch reports whether some ground instance of head is also an instance
// of lit. Repeated variables are ignored, which only adds dependencies.
func (l *Local) canMatch(head, lit ir.Atom) bool {
	if head.Predicate != lit.Predicate {
		return false
	}
	for i := range head.Tuple {
		if !l.termsMayUnify(head.Tuple[i], lit.Tuple[i]) {
			return false
		}
	}
	return true
}

func (l *Local) termsMayUnify(a, b ir.Term) bool {
	if _, ok := a.(ir.Variable); ok {
		return true
	}
	if _, ok := b.(ir.Variable); ok {
		return true
	}
	switch x := a.(type) {
	case ir.Constant:
		y, ok := b.(ir.Constant)
		if !ok {
			return false
		}
		if x.Value == y.Value {
			return true
		}
		if !l.Strict {
			return false
		}
		xf, xok := ir.Numeric(x.Value)
		yf, yok := ir.Numeric(y.Value)
		return xok && yok && xf == yf
	case ir.Constructed:
		y, ok := b.(ir.Constructed)
		if !ok || x.Functor != y.Functor || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !l.termsMayUnify(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
