package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/ir"
)

// ruleStrings renders strata for readable diffs.
func ruleStrings(strata [][]ir.Rule) [][]string {
	out := make([][]string, len(strata))
	for i, s := range strata {
		for _, r := range s {
			out[i] = append(out[i], r.String())
		}
	}
	return out
}

// assertValidStratification checks that positive dependencies never point to
// a higher predicate stratum and negative ones always point strictly lower.
func assertValidStratification(t *testing.T, rules []ir.Rule, strata map[ir.Predicate]int) {
	t.Helper()
	reg := builtin.Default()
	for _, r := range rules {
		head := strata[r.HeadPredicate()]
		for _, l := range r.Body {
			if reg.IsBuiltin(l.Predicate()) {
				continue
			}
			body := strata[l.Predicate()]
			if l.Positive {
				assert.GreaterOrEqual(t, head, body, "rule %s", r)
			} else {
				assert.Greater(t, head, body, "rule %s", r)
			}
		}
	}
}

func pred(symbol string, arity int) ir.Predicate { return ir.Predicate{Symbol: symbol, Arity: arity} }

func TestGlobal_NegationRaisesStratum(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("r", vX), pos("q", vX), neg("s", vX)),
		ir.NewRule(atom("s", vX), pos("t", vX)),
	}
	g := &Global{Builtins: builtin.Default()}
	strata, err := g.Stratify(rules)
	require.NoError(t, err)

	want := [][]string{
		{"s(?X) :- t(?X)."},
		{"r(?X) :- q(?X), not s(?X)."},
	}
	if diff := cmp.Diff(want, ruleStrings(strata)); diff != "" {
		t.Errorf("strata mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, g.Strata()[pred("r", 1)])
	assert.Equal(t, 1, g.Strata()[pred("s", 1)])
	assertValidStratification(t, rules, g.Strata())
}

func TestGlobal_RecursionWithoutNegationIsOneStratum(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("path", vX, vY), pos("edge", vX, vY)),
		ir.NewRule(atom("path", vX, vZ), pos("edge", vX, vY), pos("path", vY, vZ)),
		ir.NewRule(atom("unreachable", vX, vY), pos("node", vX), pos("node", vY), neg("path", vX, vY)),
	}
	g := &Global{Builtins: builtin.Default()}
	strata, err := g.Stratify(rules)
	require.NoError(t, err)
	require.Len(t, strata, 2)
	assert.Len(t, strata[0], 2)
	assert.Len(t, strata[1], 1)
	assertValidStratification(t, rules, g.Strata())
}

func TestGlobal_BuiltinsAreNotPredicates(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("p", vX), pos("q", vX), neg("<", vX, ir.NewInt(3))),
	}
	g := &Global{Builtins: builtin.Default()}
	strata, err := g.Stratify(rules)
	require.NoError(t, err)
	assert.Len(t, strata, 1)
	_, tracked := g.Strata()[pred("<", 2)]
	assert.False(t, tracked)
}

func TestGlobal_MutualNegationFails(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("a"), neg("b")),
		ir.NewRule(atom("b"), neg("a")),
	}
	g := &Global{Builtins: builtin.Default()}
	_, err := g.Stratify(rules)

	var ns *NotStratifiedError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, "global", ns.Strategy)
	assert.Equal(t, []ir.Predicate{pred("a", 0), pred("b", 0), pred("a", 0)}, ns.Cycle)
	assert.Contains(t, err.Error(), "a/0 -> not b/0 -> a/0")
	assert.Nil(t, g.Strata())
}

func TestGlobal_NegativeSelfLoopFails(t *testing.T) {
	rules := []ir.Rule{ir.NewRule(atom("p", ir.NewInt(1)), neg("p", ir.NewInt(2)))}
	_, err := (&Global{Builtins: builtin.Default()}).Stratify(rules)

	var ns *NotStratifiedError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, []ir.Predicate{pred("p", 1), pred("p", 1)}, ns.Cycle)
}

func TestLocal_ConflictingConstantsDoNotDepend(t *testing.T) {
	rules := []ir.Rule{ir.NewRule(atom("p", ir.NewInt(1)), neg("p", ir.NewInt(2)))}

	for _, strict := range []bool{true, false} {
		strata, err := (&Local{Builtins: builtin.Default(), Strict: strict}).Stratify(rules)
		require.NoError(t, err)
		assert.Len(t, strata, 1)
	}
}

func TestLocal_StrictMatchesAcrossNumericKinds(t *testing.T) {
	rules := []ir.Rule{ir.NewRule(atom("p", ir.NewInt(1)), neg("p", ir.NewDouble(1)))}

	_, err := (&Local{Builtins: builtin.Default(), Strict: true}).Stratify(rules)
	var ns *NotStratifiedError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, "local-strict", ns.Strategy)

	strata, err := (&Local{Builtins: builtin.Default()}).Stratify(rules)
	require.NoError(t, err)
	assert.Len(t, strata, 1)
}

func TestLocal_NegationSplitsRulesOfOnePredicate(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("p", ir.NewInt(1)), neg("p", ir.NewInt(2))),
		ir.NewRule(atom("p", ir.NewInt(2)), pos("q")),
	}
	strata, err := (&Local{Builtins: builtin.Default()}).Stratify(rules)
	require.NoError(t, err)

	want := [][]string{
		{"p(2) :- q."},
		{"p(1) :- not p(2)."},
	}
	if diff := cmp.Diff(want, ruleStrings(strata)); diff != "" {
		t.Errorf("strata mismatch (-want +got):\n%s", diff)
	}
}

func TestLocal_VariablesMatchAnything(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("p", vX), pos("q", vX), neg("p", ir.NewInt(2))),
	}
	_, err := (&Local{Builtins: builtin.Default()}).Stratify(rules)
	assert.True(t, IsNotStratified(err))
}

func TestStratify_FirstSuccessWins(t *testing.T) {
	reg := builtin.Default()
	chain := []Stratifier{
		&Global{Builtins: reg},
		&Local{Builtins: reg, Strict: true},
		&Local{Builtins: reg},
	}

	rules := []ir.Rule{ir.NewRule(atom("p", ir.NewInt(1)), neg("p", ir.NewInt(2)))}
	_, winner, err := Stratify(rules, chain, nil)
	require.NoError(t, err)
	assert.Equal(t, "local-strict", winner)

	rules = []ir.Rule{ir.NewRule(atom("p", ir.NewInt(1)), neg("p", ir.NewDouble(1)))}
	_, winner, err = Stratify(rules, chain, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", winner)

	rules = []ir.Rule{ir.NewRule(atom("q", vX), pos("r", vX))}
	_, winner, err = Stratify(rules, chain, nil)
	require.NoError(t, err)
	assert.Equal(t, "global", winner)
}

func TestStratify_AllFailReturnsLastError(t *testing.T) {
	reg := builtin.Default()
	chain := []Stratifier{&Global{Builtins: reg}, &Local{Builtins: reg}}
	rules := []ir.Rule{
		ir.NewRule(atom("a"), neg("b")),
		ir.NewRule(atom("b"), neg("a")),
	}
	_, _, err := Stratify(rules, chain, nil)
	var ns *NotStratifiedError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, "local", ns.Strategy)
}

func TestStratify_EmptyChain(t *testing.T) {
	_, _, err := Stratify(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewStratifier(t *testing.T) {
	for _, name := range []string{"global", "local-strict", "local"} {
		s, err := NewStratifier(name, builtin.Default())
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := NewStratifier("magic", builtin.Default())
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReorderStratum_ProducersFirst(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("r", vX), pos("s", vX)),
		ir.NewRule(atom("s", vX), pos("t", vX)),
		ir.NewRule(atom("t", vX), pos("base", vX)),
	}
	got := reorderStratum(rules)
	want := []string{
		"t(?X) :- base(?X).",
		"s(?X) :- t(?X).",
		"r(?X) :- s(?X).",
	}
	var names []string
	for _, r := range got {
		names = append(names, r.String())
	}
	assert.Equal(t, want, names)
}

func TestReorderStratum_CyclesKeepFirstAppearance(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("even", vX), pos("odd", vX)),
		ir.NewRule(atom("odd", vX), pos("even", vX)),
		ir.NewRule(atom("odd", vX), pos("zero", vX)),
		ir.NewRule(atom("zero", vX), pos("base", vX)),
	}
	got := reorderStratum(rules)
	var heads []string
	for _, r := range got {
		heads = append(heads, r.HeadPredicate().Symbol)
	}
	assert.Equal(t, []string{"zero", "even", "odd", "odd"}, heads)
}
