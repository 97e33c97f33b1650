package compiler

import (
	"sort"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// SafetyAnalyzer decides whether every variable of a rule is limited.
//
// A variable is limited when it occurs in a positive ordinary literal, when a
// positive equality ties it to a ground term or to a limited variable, or,
// with ArithmeticTargetsLimited, when it is the only unlimited variable of a
// positive arithmetic built-in.
type SafetyAnalyzer struct {
	AllowUnlimitedInNegation bool
	ArithmeticTargetsLimited bool
	Builtins                 *builtin.Registry
}

// NewSafetyAnalyzer takes both relaxations from cfg.
func NewSafetyAnalyzer(cfg config.Config, reg *builtin.Registry) SafetyAnalyzer {
	return SafetyAnalyzer{
		AllowUnlimitedInNegation: cfg.Safety.AllowUnlimitedInNegation,
		ArithmeticTargetsLimited: cfg.Safety.ArithmeticTargetsLimited,
		Builtins:                 reg,
	}
}

// ruleVariables is the per-rule partition of variables.
type ruleVariables struct {
	head       []ir.Variable
	limited    map[ir.Variable]bool
	negative   []ir.Variable
	builtin    []ir.Variable
	equalities [][2]ir.Term
	arithmetic [][]ir.Variable
}

// Analyze returns a *RuleUnsafeError naming every unlimited variable, or nil.
func (a SafetyAnalyzer) Analyze(r ir.Rule) error {
	vars := a.partition(r)
	a.close(vars)

	unlimited := make(map[ir.Variable]bool)
	for _, v := range vars.head {
		if !vars.limited[v] {
			unlimited[v] = true
		}
	}
	for _, v := range vars.builtin {
		if !vars.limited[v] {
			unlimited[v] = true
		}
	}
	if !a.AllowUnlimitedInNegation {
		for _, v := range vars.negative {
			if !vars.limited[v] {
				unlimited[v] = true
			}
		}
	}
	if len(unlimited) == 0 {
		return nil
	}

	names := make([]ir.Variable, 0, len(unlimited))
	for v := range unlimited {
		names = append(names, v)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return &RuleUnsafeError{Rule: r, Variables: names}
}

// partition sorts the rule's variables into categories in one pass.
func (a SafetyAnalyzer) partition(r ir.Rule) *ruleVariables {
	vars := &ruleVariables{limited: make(map[ir.Variable]bool)}
	for _, l := range r.Head {
		vars.head = append(vars.head, l.Atom.Variables()...)
	}

	for _, l := range r.Body {
		b, isBuiltin := a.Builtins.Lookup(l.Predicate())
		lv := l.Atom.Variables()
		switch {
		case !isBuiltin && l.Positive:
			for _, v := range lv {
				vars.limited[v] = true
			}
		case !isBuiltin:
			vars.negative = append(vars.negative, lv...)
		default:
			vars.builtin = append(vars.builtin, lv...)
			if !l.Positive {
				continue
			}
			switch b.Kind() {
			case builtin.Equality:
				if len(l.Atom.Tuple) == 2 {
					vars.equalities = append(vars.equalities, [2]ir.Term{l.Atom.Tuple[0], l.Atom.Tuple[1]})
				}
			case builtin.Arithmetic:
				vars.arithmetic = append(vars.arithmetic, lv)
			}
		}
	}
	return vars
}

// close extends vars.limited through equalities and arithmetic until nothing
// changes. One pass is not enough: ?X = ?Y, ?Y = 'a' needs two.
func (a SafetyAnalyzer) close(vars *ruleVariables) {
	for changed := true; changed; {
		changed = false
		for _, eq := range vars.equalities {
			left, right := termLimited(eq[0], vars.limited), termLimited(eq[1], vars.limited)
			switch {
			case left && !right:
				changed = markLimited(eq[1], vars.limited) || changed
			case right && !left:
				changed = markLimited(eq[0], vars.limited) || changed
			}
		}
		if !a.ArithmeticTargetsLimited {
			continue
		}
		for _, group := range vars.arithmetic {
			var open []ir.Variable
			for _, v := range group {
				if !vars.limited[v] {
					open = append(open, v)
				}
			}
			if len(open) == 1 {
				vars.limited[open[0]] = true
				changed = true
			}
		}
	}
}

// termLimited reports whether every variable of t is limited.
func termLimited(t ir.Term, limited map[ir.Variable]bool) bool {
	for _, v := range ir.TermVariables(nil, nil, t) {
		if !limited[v] {
			return false
		}
	}
	return true
}

func markLimited(t ir.Term, limited map[ir.Variable]bool) bool {
	changed := false
	for _, v := range ir.TermVariables(nil, nil, t) {
		if !limited[v] {
			limited[v] = true
			changed = true
		}
	}
	return changed
}
