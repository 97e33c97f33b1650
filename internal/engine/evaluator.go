package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Evaluator saturates one stratum at a time. Implementations are selected by
// name through config.Config.Evaluator.
type Evaluator interface {
	Name() string
	saturate(ctx context.Context, st *state, plans []plan) (rounds int, err error)
}

// NewEvaluator returns the evaluator registered under name.
func NewEvaluator(name string) (Evaluator, error) {
	switch name {
	case config.EvaluatorSemiNaive, "":
		return SemiNaive{}, nil
	case config.EvaluatorNaive:
		return Naive{}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
}

// state is the mutable store of one evaluation.
type state struct {
	db      ir.Facts
	quota   *QuotaEnforcer
	join    joiner
	stratum int
	logger  *slog.Logger
}

// insert adds a derived tuple and reports whether it was new.
func (st *state) insert(p ir.Predicate, t ir.Tuple) (bool, error) {
	if st.db.Relation(p).Contains(t) {
		return false, nil
	}
	if err := st.quota.Add(t); err != nil {
		return false, err
	}
	st.db.Add(ir.Atom{Predicate: p, Tuple: t})
	return true, nil
}

// fire evaluates one plan, reading body literal i through read, and inserts
// every head instance. New tuples are also added to delta when non-nil.
func (st *state) fire(p plan, read reader, delta ir.Facts) (int, error) {
	added := 0
	err := st.join.solve(p.body, read, 0, ir.Substitution{}, func(s ir.Substitution) error {
		t := s.ApplyTuple(p.head.Tuple)
		if !t.IsGround() {
			return fmt.Errorf("rule %s derived non-ground %s", p.rule, ir.Atom{Predicate: p.head.Predicate, Tuple: t})
		}
		isNew, err := st.insert(p.head.Predicate, t)
		if err != nil || !isNew {
			return err
		}
		added++
		if delta != nil {
			delta.Add(ir.Atom{Predicate: p.head.Predicate, Tuple: t})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, builtin.ErrDivideByZero) {
			return added, NewDivideByZeroError(st.stratum, p.rule.String(), err)
		}
		return added, err
	}
	return added, nil
}

// checkpoint runs between rounds: cancellation, then the timeout.
func (st *state) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("evaluation cancelled in stratum %d: %w", st.stratum, err)
	}
	return st.quota.Check()
}

// SemiNaive evaluates each recursive rule once per recursive body literal,
// with that literal reading only the tuples derived in the previous round.
type SemiNaive struct{}

func (SemiNaive) Name() string { return config.EvaluatorSemiNaive }

func (SemiNaive) saturate(ctx context.Context, st *state, plans []plan) (int, error) {
	full := func(_ int, p ir.Predicate) *ir.Relation { return st.db.Relation(p) }

	delta := ir.Facts{}
	for _, p := range plans {
		if _, err := st.fire(p, full, delta); err != nil {
			return 1, err
		}
	}
	rounds := 1

	for delta.Len() > 0 {
		if err := st.checkpoint(ctx); err != nil {
			return rounds, err
		}
		prev := delta
		delta = ir.Facts{}
		for _, p := range plans {
			for _, pos := range p.recursive {
				read := func(i int, pred ir.Predicate) *ir.Relation {
					if i == pos {
						return prev.Relation(pred)
					}
					return st.db.Relation(pred)
				}
				if _, err := st.fire(p, read, delta); err != nil {
					return rounds, err
				}
			}
		}
		rounds++
	}
	return rounds, nil
}

// Naive re-evaluates every rule against the full relations until a round
// derives nothing. It is the reference the semi-naive evaluator is tested
// against.
type Naive struct{}

func (Naive) Name() string { return config.EvaluatorNaive }

func (Naive) saturate(ctx context.Context, st *state, plans []plan) (int, error) {
	full := func(_ int, p ir.Predicate) *ir.Relation { return st.db.Relation(p) }
	rounds := 0
	for {
		if rounds > 0 {
			if err := st.checkpoint(ctx); err != nil {
				return rounds, err
			}
		}
		added := 0
		for _, p := range plans {
			n, err := st.fire(p, full, nil)
			if err != nil {
				return rounds + 1, err
			}
			added += n
		}
		rounds++
		if added == 0 {
			return rounds, nil
		}
	}
}
