package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/ir"
)

func TestCompileSource_Basic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
facts: {
	edge: [[1, 2], [2, 3]]
	node: [[1], [2], [3]]
	ready: [[]]
}
rules: [
	{head: {path: ["?X", "?Y"]}, body: [{edge: ["?X", "?Y"]}]},
	{head: {path: ["?X", "?Z"]}, body: [{edge: ["?X", "?Y"]}, {path: ["?Y", "?Z"]}]},
	{head: {sink: ["?X"]}, body: [{node: ["?X"]}, {not: {edge: ["?X", "?Y"]}}]},
	{head: {big: ["?X"]}, body: [{node: ["?X"]}, {">": ["?X", 1]}]},
]
queries: [
	[{path: [1, "?Y"]}],
	{sink: ["?X"]},
]
`)
	src, err := CompileSource(v)
	require.NoError(t, err)

	assert.Equal(t, 6, src.Facts.Len())
	assert.True(t, src.Facts.Relation(pred("edge", 2)).Contains(ir.Tuple{ir.NewInt(1), ir.NewInt(2)}))
	assert.Equal(t, 1, src.Facts.Relation(pred("ready", 0)).Len())

	require.Len(t, src.Rules, 4)
	assert.Equal(t, "path(?X, ?Z) :- edge(?X, ?Y), path(?Y, ?Z).", src.Rules[1].String())
	assert.Equal(t, "sink(?X) :- node(?X), not edge(?X, ?Y).", src.Rules[2].String())
	assert.Equal(t, pred(">", 2), src.Rules[3].Body[1].Predicate())

	require.Len(t, src.Queries, 2)
	assert.Equal(t, "?- path(1, ?Y).", src.Queries[0].String())
	assert.Equal(t, "?- sink(?X).", src.Queries[1].String())
}

func TestCompileSource_MultipleHeadsReachValidation(t *testing.T) {
	v := cuecontext.New().CompileString(`
rules: [{head: [{p: ["?X"]}, {q: ["?X"]}], body: [{r: ["?X"]}]}]
`)
	src, err := CompileSource(v)
	require.NoError(t, err)
	require.Len(t, src.Rules[0].Head, 2)

	errs := ValidateRules(src.Rules, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrMultipleHeadLiterals, errs[0].Code)
}

func TestCompileSource_NonGroundFact(t *testing.T) {
	v := cuecontext.New().CompileString(`
facts: {p: [[1], ["?X"]]}
`)
	_, err := CompileSource(v)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, ErrNonGroundFact, verrs[0].Code)
	assert.Greater(t, verrs[0].Line, 0)
}

func TestCompileSource_LiteralNeedsOnePredicate(t *testing.T) {
	v := cuecontext.New().CompileString(`
rules: [{head: {p: ["?X"], q: ["?X"]}}]
`)
	_, err := CompileSource(v)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "exactly one predicate field")
}

func TestCompileSource_CUEError(t *testing.T) {
	v := cuecontext.New().CompileString(`
facts: {p: [[1]]}
facts: {p: [[2]]}
`)
	_, err := CompileSource(v)
	assert.Error(t, err)
}

func TestParseTerm(t *testing.T) {
	tests := []struct {
		expr string
		want ir.Term
	}{
		{`"?X"`, ir.Var("X")},
		{`"abc"`, ir.NewString("abc")},
		{`{string: "?X"}`, ir.NewString("?X")},
		{`42`, ir.NewInt(42)},
		{`1.5`, ir.NewDouble(1.5)},
		{`{float: 1.5}`, ir.NewFloat(1.5)},
		{`true`, ir.NewBool(true)},
		{`{iri: "http://example.org/a"}`, ir.NewIRI("http://example.org/a")},
		{`{fn: "f", args: [1, "?Y"]}`, ir.Fn("f", ir.NewInt(1), ir.Var("Y"))},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseTerm(tt.expr)
			require.NoError(t, err)
			assert.True(t, ir.EqualTerms(tt.want, got), "got %s", got)
		})
	}
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(`[{path: [1, "?Y"]}, {not: {blocked: ["?Y"]}}]`)
	require.NoError(t, err)
	assert.Equal(t, "?- path(1, ?Y), not blocked(?Y).", q.String())

	_, err = ParseQuery(`{path: [1, "?Y"}`)
	assert.Error(t, err)
}
