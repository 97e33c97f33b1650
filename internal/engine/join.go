package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// plan is a rule with its body in evaluation order.
type plan struct {
	rule ir.Rule
	head ir.Atom
	body []ir.Literal
	// recursive holds the body positions whose predicate is derived in the
	// rule's own stratum.
	recursive []int
}

func newPlan(r ir.Rule, heads map[ir.Predicate]bool, reg *builtin.Registry) plan {
	p := plan{rule: r, head: r.HeadAtom(), body: compiler.OrderBody(r.Body, reg)}
	for i, l := range p.body {
		if l.Positive && !reg.IsBuiltin(l.Predicate()) && heads[l.Predicate()] {
			p.recursive = append(p.recursive, i)
		}
	}
	return p
}

// reader returns the relation body literal i reads.
type reader func(i int, p ir.Predicate) *ir.Relation

// joiner enumerates the substitutions satisfying a body.
type joiner struct {
	builtins     *builtin.Registry
	opts         builtin.Options
	divideByZero config.DivideByZero
}

func newJoiner(reg *builtin.Registry, cfg config.Config) joiner {
	return joiner{builtins: reg, opts: cfg.BuiltinOptions(), divideByZero: cfg.DivideByZero}
}

// solve calls emit with every extension of s satisfying body[i:].
func (j joiner) solve(body []ir.Literal, read reader, i int, s ir.Substitution, emit func(ir.Substitution) error) error {
	if i == len(body) {
		return emit(s)
	}
	l := body[i]

	if b, ok := j.builtins.Lookup(l.Predicate()); ok {
		instances, err := b.Evaluate(s.ApplyTuple(l.Atom.Tuple), j.opts)
		if err != nil {
			if errors.Is(err, builtin.ErrDivideByZero) && j.divideByZero == config.DivideByZeroDiscard {
				return nil
			}
			return fmt.Errorf("evaluate %s: %w", s.ApplyLiteral(l), err)
		}
		if !l.Positive {
			if len(instances) > 0 {
				return nil
			}
			return j.solve(body, read, i+1, s, emit)
		}
		for _, inst := range instances {
			next := s.Clone()
			if matchTuple(next, l.Atom.Tuple, inst) {
				if err := j.solve(body, read, i+1, next, emit); err != nil {
					return err
				}
			}
		}
		return nil
	}

	rel := read(i, l.Predicate())
	args := s.ApplyTuple(l.Atom.Tuple)
	if args.IsGround() {
		if rel.Contains(args) == l.Positive {
			return j.solve(body, read, i+1, s, emit)
		}
		return nil
	}

	if !l.Positive {
		// Variables left open in a negated literal are existential.
		for _, t := range rel.Tuples() {
			if matchTuple(s.Clone(), l.Atom.Tuple, t) {
				return nil
			}
		}
		return j.solve(body, read, i+1, s, emit)
	}

	for _, t := range rel.Tuples() {
		next := s.Clone()
		if !matchTuple(next, l.Atom.Tuple, t) {
			continue
		}
		if err := j.solve(body, read, i+1, next, emit); err != nil {
			return err
		}
	}
	return nil
}

func matchTuple(s ir.Substitution, pattern, value ir.Tuple) bool {
	for k := range pattern {
		if !s.Match(pattern[k], value[k]) {
			return false
		}
	}
	return true
}
