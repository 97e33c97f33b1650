package compiler

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/ir"
)

func TestJoinCondition_RenamesVariable(t *testing.T) {
	r := ir.NewRule(atom("p", vX, vY), pos("q", vX), pos("r", vY), pos("=", vX, vY))
	got := JoinCondition{Builtins: builtin.Default()}.Optimize(r)
	assert.Equal(t, "p(?X, ?X) :- q(?X), r(?X).", got.String())
}

func TestJoinCondition_KeepsConstantEquality(t *testing.T) {
	r := ir.NewRule(atom("p", vX), pos("q", vX), pos("=", vX, ir.NewInt(1)))
	got := JoinCondition{Builtins: builtin.Default()}.Optimize(r)
	assert.Len(t, got.Body, 2)
}

func TestReplaceConstants_SubstitutesEverywhere(t *testing.T) {
	r := ir.NewRule(atom("p", vX, vY), pos("q", vX, vY), pos("=", ir.NewInt(1), vX))
	got := ReplaceConstants{Builtins: builtin.Default()}.Optimize(r)
	assert.Equal(t, "p(1, ?Y) :- q(1, ?Y).", got.String())
}

func TestReplaceConstants_IgnoresNegatedEquality(t *testing.T) {
	r := ir.NewRule(atom("p", vX), pos("q", vX), neg("=", vX, ir.NewInt(1)))
	got := ReplaceConstants{Builtins: builtin.Default()}.Optimize(r)
	assert.Equal(t, r.String(), got.String())
}

func TestReorderLiterals_DefersUntilBound(t *testing.T) {
	r := ir.NewRule(atom("p", vX),
		pos(">", vX, ir.NewInt(1)),
		neg("r", vX),
		pos("q", vX),
	)
	got := ReorderLiterals{Builtins: builtin.Default()}.Optimize(r)
	require.Len(t, got.Body, 3)
	assert.Equal(t, "q", got.Body[0].Predicate().Symbol)
	assert.Equal(t, ">", got.Body[1].Predicate().Symbol)
	assert.Equal(t, "r", got.Body[2].Predicate().Symbol)
}

func TestOrderBody_ArithmeticChains(t *testing.T) {
	// ?Z needs ?Y, which the first ADD produces.
	body := []ir.Literal{
		pos("ADD", vY, ir.NewInt(1), vZ),
		pos("ADD", vX, ir.NewInt(1), vY),
		pos("q", vX),
	}
	got := OrderBody(body, builtin.Default())
	require.Len(t, got, 3)
	assert.Equal(t, "q", got[0].Predicate().Symbol)
	assert.True(t, ir.EqualLiterals(body[1], got[1]))
	assert.True(t, ir.EqualLiterals(body[0], got[2]))
}

func TestOrderBody_UnreadyNegationGoesLast(t *testing.T) {
	body := []ir.Literal{neg("r", vX, vY), pos("q", vX), pos("s", vX)}
	got := OrderBody(body, builtin.Default())
	assert.Equal(t, "q", got[0].Predicate().Symbol)
	assert.Equal(t, "s", got[1].Predicate().Symbol)
	assert.False(t, got[2].Positive)
}

func TestRemoveDuplicates(t *testing.T) {
	r := ir.NewRule(atom("p", vX), pos("q", vX), pos("q", vX), neg("r", vX), neg("r", vX), pos("q", vY))
	got := RemoveDuplicates{}.Optimize(r)
	assert.Equal(t, "p(?X) :- q(?X), not r(?X), q(?Y).", got.String())
}

func TestNewOptimizer_UnknownName(t *testing.T) {
	_, err := NewOptimizer("inline", builtin.Default())
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestHeadEquality_RejectAndDrop(t *testing.T) {
	reg := builtin.Default()
	eqRule := ir.NewRule(atom("=", vX, vY), pos("same", vX, vY))
	other := ir.NewRule(atom("p", vX), pos("q", vX))
	rules := []ir.Rule{eqRule, other}

	_, err := RejectHeadEquality{Builtins: reg}.Handle(rules)
	var he *HeadEqualityError
	require.ErrorAs(t, err, &he)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	drop := DropHeadEquality{Builtins: reg, Logger: logger}
	out, err := drop.Handle(rules)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "p", out[0].HeadPredicate().Symbol)
	assert.Contains(t, buf.String(), "dropping rule with equality head")

	out, err = HandleHeadEquality(rules, []HeadEqualityHandler{RejectHeadEquality{Builtins: reg}, drop})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
