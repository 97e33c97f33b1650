package magic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

var (
	vX = ir.Var("X")
	vY = ir.Var("Y")
	vZ = ir.Var("Z")
)

func atom(symbol string, terms ...ir.Term) ir.Atom { return ir.NewAtom(symbol, terms...) }

func pos(symbol string, terms ...ir.Term) ir.Literal { return ir.Pos(atom(symbol, terms...)) }

func neg(symbol string, terms ...ir.Term) ir.Literal { return ir.Neg(atom(symbol, terms...)) }

func pathRules() []ir.Rule {
	return []ir.Rule{
		ir.NewRule(atom("path", vX, vY), pos("edge", vX, vY)),
		ir.NewRule(atom("path", vX, vZ), pos("edge", vX, vY), pos("path", vY, vZ)),
	}
}

func ruleStrings(rules []ir.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}

func TestAdornmentOf(t *testing.T) {
	bound := map[ir.Variable]bool{"X": true}
	tuple := ir.Tuple{vX, vY, ir.NewInt(1), ir.Fn("f", vX), ir.Fn("g", vY)}
	assert.Equal(t, Adornment("bfbbf"), AdornmentOf(tuple, bound))
	assert.Equal(t, Adornment("ffbff"), AdornmentOf(tuple, nil))
	assert.True(t, Adornment("fb").HasBound())
	assert.False(t, Adornment("ff").HasBound())
}

func TestAdornedPredicate_Names(t *testing.T) {
	ap := AdornedPredicate{Predicate: ir.Predicate{Symbol: "path", Arity: 2}, Adornment: "bf"}
	assert.Equal(t, ir.Predicate{Symbol: "path^bf", Arity: 2}, ap.Adorned())
	assert.Equal(t, ir.Predicate{Symbol: "magic_path^bf", Arity: 1}, ap.Magic())
	assert.Equal(t, ir.Tuple{ir.NewInt(1)}, ap.BoundArgs(ir.Tuple{ir.NewInt(1), vY}))
}

func TestBuildSIP_TransitiveClosure(t *testing.T) {
	sip := BuildSIP(pathRules()[1], "bf", builtin.Default())

	want := []Edge{
		{From: HeadVertex, To: 0, Variables: []ir.Variable{"X"}},
		{From: 0, To: 1, Variables: []ir.Variable{"Y"}},
	}
	if diff := cmp.Diff(want, sip.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []ir.Variable{"X"}, sip.BoundBefore(0))
	assert.Equal(t, []ir.Variable{"X", "Y"}, sip.BoundBefore(1))
	assert.Equal(t, []ir.Variable{"Y"}, sip.BoundVariables(1))
	assert.Equal(t, []int{0}, sip.Depends(1))
	assert.Empty(t, sip.Depends(0))
	assert.Equal(t, -1, sip.Compare(0, 1))
	assert.Equal(t, 1, sip.Compare(1, 0))
	assert.Len(t, sip.EdgesFrom(HeadVertex), 1)
	assert.Len(t, sip.EdgesInto(1), 1)
}

func TestBuildSIP_BuiltinsAndNegation(t *testing.T) {
	r := ir.NewRule(atom("p", vX, vZ),
		pos("q", vX),
		neg("s", vX),
		pos("ADD", vX, ir.NewInt(1), vZ),
		pos("r", vZ),
		pos(">", vY, ir.NewInt(0)),
	)
	sip := BuildSIP(r, "ff", builtin.Default())

	want := []Edge{
		{From: 0, To: 1, Variables: []ir.Variable{"X"}},
		{From: 0, To: 2, Variables: []ir.Variable{"X"}},
		{From: 2, To: 3, Variables: []ir.Variable{"Z"}},
	}
	if diff := cmp.Diff(want, sip.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{0, 2}, sip.Depends(3))
	assert.Equal(t, 0, sip.Compare(1, 3), "negated literal passes nothing")
	// ?Y is never bound, so the comparison produces nothing.
	assert.NotContains(t, sip.BoundBefore(4), ir.Variable("Y"))
}

func TestBuildSIP_ParallelEdgesMerge(t *testing.T) {
	r := ir.NewRule(atom("p", vX, vY), pos("q", vX, vY), pos("r", vX, vY))
	sip := BuildSIP(r, "ff", builtin.Default())
	want := []Edge{{From: 0, To: 1, Variables: []ir.Variable{"X", "Y"}}}
	if diff := cmp.Diff(want, sip.Edges()); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSIP_BoundSetIsMonotone(t *testing.T) {
	rules := append(pathRules(),
		ir.NewRule(atom("p", vX, vZ), pos("q", vX), neg("s", vX), pos("ADD", vX, ir.NewInt(1), vZ), pos("r", vZ)),
		ir.NewRule(atom("p", vX, vY), pos("=", vX, vY), pos("q", vY), pos("t", vX, vZ), pos("u", vZ)),
	)
	for _, r := range rules {
		for _, ad := range []Adornment{AdornmentOf(r.HeadAtom().Tuple, nil), "bf", "fb", "bb"} {
			if len(ad) != r.HeadAtom().Predicate.Arity {
				continue
			}
			sip := BuildSIP(r, ad, builtin.Default())
			for i := 1; i < sip.Len(); i++ {
				prev, cur := sip.BoundBefore(i-1), sip.BoundBefore(i)
				for _, v := range prev {
					assert.Contains(t, cur, v, "rule %s adornment %s literal %d", r, ad, i)
				}
			}
		}
	}
}

func TestAdorn_PropagatesBindings(t *testing.T) {
	q := ir.NewQuery(pos("path", ir.NewInt(1), vY))
	ap, err := Adorn(pathRules(), q, builtin.Default())
	require.NoError(t, err)

	assert.Equal(t, Adornment("bf"), ap.Seed.Adornment)
	require.Len(t, ap.Predicates, 1)
	assert.Equal(t, []string{
		"path^bf(?X, ?Y) :- edge(?X, ?Y).",
		"path^bf(?X, ?Z) :- edge(?X, ?Y), path^bf(?Y, ?Z).",
	}, func() []string {
		var s []string
		for _, r := range ap.Rules {
			s = append(s, r.Rule.String())
		}
		return s
	}())
}

func TestAdorn_NewPatternsAreEnqueued(t *testing.T) {
	// Reversing the arguments turns a bf request into an fb one.
	rules := []ir.Rule{
		ir.NewRule(atom("r", vX, vY), pos("e", vX, vY)),
		ir.NewRule(atom("r", vX, vY), pos("r", vY, vX)),
	}
	ap, err := Adorn(rules, ir.NewQuery(pos("r", ir.NewInt(1), vY)), builtin.Default())
	require.NoError(t, err)
	var names []string
	for _, p := range ap.Predicates {
		names = append(names, p.String())
	}
	assert.Equal(t, []string{"r^bf/2", "r^fb/2"}, names)
	assert.Len(t, ap.Rules, 4)
}

func TestAdorn_Rejections(t *testing.T) {
	_, err := Adorn(pathRules(), ir.NewQuery(pos("path", vX, vY), pos("edge", vX, vY)), builtin.Default())
	assert.ErrorIs(t, err, ErrMultiLiteralQuery)

	multi := ir.Rule{Head: []ir.Literal{pos("p", vX), pos("q", vX)}, Body: []ir.Literal{pos("r", vX)}}
	_, err = Adorn([]ir.Rule{multi}, ir.NewQuery(pos("p", ir.NewInt(1))), builtin.Default())
	assert.ErrorIs(t, err, ErrMultipleHeads)
}

func TestRewrite_MagicRules(t *testing.T) {
	q := ir.NewQuery(pos("path", ir.NewInt(1), vY))
	ap, err := Adorn(pathRules(), q, builtin.Default())
	require.NoError(t, err)

	rw := Rewrite(ap, pathRules(), nil)
	assert.Equal(t, []string{
		"path^bf(?X, ?Y) :- magic_path^bf(?X), edge(?X, ?Y).",
		"path^bf(?X, ?Z) :- magic_path^bf(?X), edge(?X, ?Y), path^bf(?Y, ?Z).",
		"magic_path^bf(?Y) :- magic_path^bf(?X), edge(?X, ?Y).",
	}, ruleStrings(rw.Rules))
	assert.Equal(t, "magic_path^bf(1)", rw.Seed.String())
	assert.Equal(t, "?- path^bf(1, ?Y).", rw.Query.String())
}

func TestRewrite_NegatedPredicatesKeepSourceRules(t *testing.T) {
	rules := []ir.Rule{
		ir.NewRule(atom("safe", vX), pos("node", vX), neg("bad", vX)),
		ir.NewRule(atom("bad", vX), pos("flagged", vX)),
		ir.NewRule(atom("flagged", vX), pos("reported", vX)),
		ir.NewRule(atom("unrelated", vX), pos("node", vX)),
	}
	ap, err := Adorn(rules, ir.NewQuery(pos("safe", ir.NewInt(1))), builtin.Default())
	require.NoError(t, err)
	assert.Equal(t, []ir.Predicate{{Symbol: "bad", Arity: 1}}, ap.Negated)

	rw := Rewrite(ap, rules, nil)
	assert.Equal(t, []string{
		"safe^b(?X) :- magic_safe^b(?X), node(?X), not bad(?X).",
		"bad(?X) :- flagged(?X).",
		"flagged(?X) :- reported(?X).",
	}, ruleStrings(rw.Rules))
}

func TestRewrite_BridgesBaseFactsOfDerivedPredicates(t *testing.T) {
	facts := ir.Facts{}
	facts.Add(atom("path", ir.NewInt(7), ir.NewInt(8)))
	ap, err := Adorn(pathRules(), ir.NewQuery(pos("path", ir.NewInt(7), vY)), builtin.Default())
	require.NoError(t, err)

	rw := Rewrite(ap, pathRules(), facts)
	assert.Contains(t, ruleStrings(rw.Rules), "path^bf(?A0, ?A1) :- magic_path^bf(?A0), path(?A0, ?A1).")
}

func TestAdornForQuery(t *testing.T) {
	facts := ir.Facts{}
	facts.Add(atom("edge", ir.NewInt(1), ir.NewInt(2)))
	facts.Add(atom("edge", ir.NewInt(2), ir.NewInt(3)))
	p, err := compiler.Compile(facts, pathRules(), config.Default())
	require.NoError(t, err)

	mp, err := AdornForQuery(p, ir.NewQuery(pos("path", ir.NewInt(1), vY)), config.Default())
	require.NoError(t, err)
	assert.True(t, mp.Rewritten)
	assert.Equal(t, "?- path^bf(1, ?Y).", mp.Query.String())
	assert.True(t, mp.Facts.Relation(ir.Predicate{Symbol: "magic_path^bf", Arity: 1}).Contains(ir.Tuple{ir.NewInt(1)}))
	assert.True(t, mp.IsIDB(ir.Predicate{Symbol: "path^bf", Arity: 2}))

	// Nothing bound: the original program is used.
	mp, err = AdornForQuery(p, ir.NewQuery(pos("path", vX, vY)), config.Default())
	require.NoError(t, err)
	assert.False(t, mp.Rewritten)
	assert.Same(t, p, mp.Program)

	_, err = AdornForQuery(nil, ir.NewQuery(pos("path", vX, vY)), config.Default())
	assert.ErrorIs(t, err, compiler.ErrInvalidArgument)

	_, err = AdornForQuery(p, ir.Query{}, config.Default())
	assert.ErrorIs(t, err, compiler.ErrInvalidArgument)

	_, err = AdornForQuery(p, ir.NewQuery(pos("path", vX, vY), pos("edge", vX, vY)), config.Default())
	assert.ErrorIs(t, err, ErrMultiLiteralQuery)
}
