package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Answer holds the bindings of a query's variables, one tuple per solution in
// the order of Variables. A query without variables holds the empty tuple
// when it is true and nothing when it is false.
type Answer struct {
	Query     ir.Query
	Variables []ir.Variable
	Bindings  *ir.Relation
	// Rewritten is true when the answer came from a magic-sets program.
	Rewritten bool
	Stats     Stats
	// RunID is set when the answer was recorded in a run log.
	RunID string

	builtins *builtin.Registry
}

// Stats describes the evaluation an answer was read from.
type Stats struct {
	Evaluator string
	Rounds    int
	Derived   uint64
}

// Answer matches query against the relations of r.
func (r *Result) Answer(query ir.Query, cfg config.Config) (*Answer, error) {
	vars := query.Variables()
	ans := &Answer{
		Query:     query,
		Variables: vars,
		Bindings:  ir.NewRelation(len(vars)),
		Stats: Stats{
			Evaluator: r.Evaluator,
			Rounds:    r.TotalRounds(),
			Derived:   r.Derived,
		},
		builtins: r.builtins,
	}
	j := newJoiner(r.builtins, cfg)
	body := compiler.OrderBody(query.Literals, r.builtins)
	read := func(_ int, p ir.Predicate) *ir.Relation { return r.Facts.Relation(p) }
	err := j.solve(body, read, 0, ir.Substitution{}, func(s ir.Substitution) error {
		t := make(ir.Tuple, len(vars))
		for i, v := range vars {
			t[i] = s.Apply(v)
		}
		if t.IsGround() {
			ans.Bindings.Add(t)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, builtin.ErrDivideByZero) {
			return nil, NewDivideByZeroError(len(r.Rounds), query.String(), err)
		}
		return nil, fmt.Errorf("answer %s: %w", query, err)
	}
	return ans, nil
}

// Len returns the number of solutions.
func (a *Answer) Len() int { return a.Bindings.Len() }

// Substitutions returns one substitution per solution, sorted.
func (a *Answer) Substitutions() []ir.Substitution {
	tuples := a.Bindings.Sorted()
	out := make([]ir.Substitution, len(tuples))
	for i, t := range tuples {
		s := make(ir.Substitution, len(a.Variables))
		for k, v := range a.Variables {
			s[v] = t[k]
		}
		out[i] = s
	}
	return out
}

// Instances returns the positive ordinary literals of the query instantiated
// with every solution, sorted and without duplicates.
func (a *Answer) Instances() []ir.Atom {
	facts := ir.Facts{}
	for _, s := range a.Substitutions() {
		for _, l := range a.Query.Literals {
			if !l.Positive || a.builtins.IsBuiltin(l.Predicate()) {
				continue
			}
			facts.Add(ir.Atom{Predicate: l.Predicate(), Tuple: s.ApplyTuple(l.Atom.Tuple)})
		}
	}
	return facts.Atoms()
}

// Hash identifies the solution set independently of derivation order.
func (a *Answer) Hash() string { return ir.AnswerHash(a.Bindings) }
