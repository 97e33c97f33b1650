package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/builtin"
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

func analyzer(negation, arithmetic bool) SafetyAnalyzer {
	return SafetyAnalyzer{
		AllowUnlimitedInNegation: negation,
		ArithmeticTargetsLimited: arithmetic,
		Builtins:                 builtin.Default(),
	}
}

func unsafeVars(t *testing.T, err error) []ir.Variable {
	t.Helper()
	var unsafe *RuleUnsafeError
	require.ErrorAs(t, err, &unsafe)
	return unsafe.Variables
}

func TestSafety_HeadVariableMustBeLimited(t *testing.T) {
	r := ir.NewRule(atom("p", vX), pos("q", vY))
	err := analyzer(true, true).Analyze(r)
	assert.Equal(t, []ir.Variable{"X"}, unsafeVars(t, err))
	assert.True(t, IsRuleUnsafe(err))
}

func TestSafety_PositiveLiteralLimits(t *testing.T) {
	r := ir.NewRule(atom("p", vX, vY), pos("q", vX), pos("r", vY))
	assert.NoError(t, analyzer(false, false).Analyze(r))
}

func TestSafety_NegationRelaxation(t *testing.T) {
	r := ir.NewRule(atom("p", vX), pos("q", vX), neg("r", vX, vY))

	assert.NoError(t, analyzer(true, false).Analyze(r))

	err := analyzer(false, false).Analyze(r)
	assert.Equal(t, []ir.Variable{"Y"}, unsafeVars(t, err))
}

func TestSafety_NegationRelaxationDoesNotCoverBuiltins(t *testing.T) {
	// ?Y occurs in a negated ordinary literal and in a comparison.
	r := ir.NewRule(atom("p", vX), pos("q", vX), neg("r", vY), pos("<", vY, ir.NewInt(3)))
	err := analyzer(true, true).Analyze(r)
	assert.Equal(t, []ir.Variable{"Y"}, unsafeVars(t, err))
}

func TestSafety_ArithmeticTargetRelaxation(t *testing.T) {
	r := ir.NewRule(atom("p", vZ), pos("q", vX), pos("ADD", vX, ir.NewInt(1), vZ))

	assert.NoError(t, analyzer(false, true).Analyze(r))

	err := analyzer(false, false).Analyze(r)
	assert.Equal(t, []ir.Variable{"Z"}, unsafeVars(t, err))
}

func TestSafety_ArithmeticNeedsAllButOneLimited(t *testing.T) {
	r := ir.NewRule(atom("p", vZ), pos("q", vX), pos("MULTIPLY", vX, vY, vZ))
	err := analyzer(true, true).Analyze(r)
	assert.Equal(t, []ir.Variable{"Y", "Z"}, unsafeVars(t, err))
}

func TestSafety_EqualityClosesTransitively(t *testing.T) {
	// ?Z is limited by the constant, then ?Y by ?Z. A single pass in body
	// order would miss ?Y.
	r := ir.NewRule(atom("p", vY), pos("=", vY, vZ), pos("=", vZ, ir.NewString("a")))
	assert.NoError(t, analyzer(false, false).Analyze(r))
}

func TestSafety_EqualityWithLimitedVariable(t *testing.T) {
	r := ir.NewRule(atom("p", vY), pos("q", vX), pos("=", vX, vY))
	assert.NoError(t, analyzer(false, false).Analyze(r))
}

func TestSafety_NegatedEqualityDoesNotLimit(t *testing.T) {
	r := ir.NewRule(atom("p", vY), pos("q", vX), neg("=", vX, vY))
	err := analyzer(true, true).Analyze(r)
	assert.Equal(t, []ir.Variable{"Y"}, unsafeVars(t, err))
}

func TestSafety_ComparisonOperandsMustBeLimited(t *testing.T) {
	r := ir.NewRule(atom("p", vX), pos("q", vX), pos("<", vY, ir.NewInt(3)))
	err := analyzer(true, true).Analyze(r)
	assert.Equal(t, []ir.Variable{"Y"}, unsafeVars(t, err))
}

func TestSafety_ReportsEveryVariableSorted(t *testing.T) {
	r := ir.NewRule(atom("p", vZ, vY, vX), pos("q", ir.NewInt(1)))
	err := analyzer(true, true).Analyze(r)
	assert.Equal(t, []ir.Variable{"X", "Y", "Z"}, unsafeVars(t, err))
	assert.Contains(t, err.Error(), "?X, ?Y, ?Z")
}

func TestSafety_FactRuleIsSafe(t *testing.T) {
	r := ir.NewRule(atom("p", ir.NewInt(1)))
	assert.NoError(t, analyzer(false, false).Analyze(r))
}
