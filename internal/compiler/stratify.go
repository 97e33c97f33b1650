package compiler

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Stratifier partitions rules into ordered strata so that a negated literal
// only ever refers to relations completed in a lower stratum.
type Stratifier interface {
	Name() string
	Stratify(rules []ir.Rule) ([][]ir.Rule, error)
}

// NewStratifier builds the stratifier registered under name.
func NewStratifier(name string, reg *builtin.Registry) (Stratifier, error) {
	switch name {
	case config.StratifierGlobal:
		return &Global{Builtins: reg}, nil
	case config.StratifierLocalStrict:
		return &Local{Builtins: reg, Strict: true}, nil
	case config.StratifierLocal:
		return &Local{Builtins: reg}, nil
	default:
		return nil, fmt.Errorf("unknown stratifier %q: %w", name, ErrInvalidArgument)
	}
}

// Stratify tries each strategy in order and returns the strata and name of
// the first that succeeds. When all fail the last failure is returned.
func Stratify(rules []ir.Rule, strategies []Stratifier, logger *slog.Logger) ([][]ir.Rule, string, error) {
	if len(strategies) == 0 {
		return nil, "", fmt.Errorf("no stratifier configured: %w", ErrInvalidArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	for _, s := range strategies {
		strata, err := s.Stratify(rules)
		if err == nil {
			return strata, s.Name(), nil
		}
		logger.Debug("stratifier failed", "strategy", s.Name(), "error", err)
		lastErr = err
	}
	return nil, "", lastErr
}

// Global assigns one stratum per predicate.
//
// Every predicate starts at stratum 1. For each rule, a positive body
// predicate forces the head to at least its stratum and a negated one to
// strictly above it. Relaxation stops when nothing changes; a stratum above
// the number of predicates means recursion through negation.
type Global struct {
	Builtins *builtin.Registry

	strata map[ir.Predicate]int
}

func (g *Global) Name() string { return config.StratifierGlobal }

// Strata returns the predicate to stratum map from the last successful call.
func (g *Global) Strata() map[ir.Predicate]int { return g.strata }

func (g *Global) Stratify(rules []ir.Rule) ([][]ir.Rule, error) {
	g.strata = nil
	strata := make(map[ir.Predicate]int)
	for _, r := range rules {
		strata[r.HeadPredicate()] = 1
		for _, l := range r.Body {
			if !g.Builtins.IsBuiltin(l.Predicate()) {
				strata[l.Predicate()] = 1
			}
		}
	}
	limit := len(strata)

	for changed := true; changed; {
		changed = false
		for _, r := range rules {
			head := r.HeadPredicate()
			for _, l := range r.Body {
				if g.Builtins.IsBuiltin(l.Predicate()) {
					continue
				}
				need := strata[l.Predicate()]
				if !l.Positive {
					need++
				}
				if strata[head] < need {
					strata[head] = need
					changed = true
				}
				if strata[head] > limit {
					return nil, &NotStratifiedError{
						Strategy: g.Name(),
						Cycle:    negativeCycle(rules, g.Builtins),
					}
				}
			}
		}
	}

	g.strata = strata
	byStratum := make(map[int][]ir.Rule)
	for _, r := range rules {
		s := strata[r.HeadPredicate()]
		byStratum[s] = append(byStratum[s], r)
	}
	return groupStrata(byStratum), nil
}

// groupStrata orders strata ascending and drops empty ones.
func groupStrata(byStratum map[int][]ir.Rule) [][]ir.Rule {
	keys := make([]int, 0, len(byStratum))
	for k := range byStratum {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([][]ir.Rule, 0, len(keys))
	for _, k := range keys {
		if len(byStratum[k]) > 0 {
			out = append(out, byStratum[k])
		}
	}
	return out
}
