package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testProgram() (ir.Facts, []ir.Rule) {
	facts := ir.Facts{}
	facts.Add(ir.NewAtom("edge", ir.NewInt(1), ir.NewInt(2)))
	facts.Add(ir.NewAtom("edge", ir.NewInt(2), ir.NewInt(3)))
	rules := []ir.Rule{
		ir.NewRule(ir.NewAtom("path", ir.Var("X"), ir.Var("Y")),
			ir.Pos(ir.NewAtom("edge", ir.Var("X"), ir.Var("Y")))),
	}
	return facts, rules
}

func testRun(id, programHash string) Run {
	return Run{
		ID:          id,
		ProgramHash: programHash,
		Query:       ir.NewQuery(ir.Pos(ir.NewAtom("path", ir.NewInt(1), ir.Var("Y")))),
		Config:      config.Default(),
		Status:      RunOK,
		Evaluator:   config.EvaluatorSemiNaive,
		Rewritten:   true,
		Rounds:      3,
		Derived:     2,
		Variables:   []ir.Variable{"Y"},
		AnswerHash:  "answer-hash",
		Answers:     []ir.Tuple{{ir.NewInt(2)}, {ir.NewInt(3)}},
		StartedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Microsecond,
	}
}

func TestWriteProgram_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()

	h1, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)
	h2, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, ir.ProgramHash(facts, rules), h1)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM programs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestReadProgram_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()

	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)

	gotFacts, gotRules, err := s.ReadProgram(ctx, hash)
	require.NoError(t, err)
	assert.True(t, facts.Equal(gotFacts))
	require.Len(t, gotRules, 1)
	assert.Equal(t, rules[0].String(), gotRules[0].String())

	_, _, err = s.ReadProgram(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteRun_ReadRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()
	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)

	want := testRun("run-1", hash)
	seq, err := s.WriteRun(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	want.Seq = seq
	diff := cmp.Diff(want, got,
		cmp.Comparer(func(a, b ir.Query) bool { return a.String() == b.String() }),
		cmp.Comparer(func(a, b ir.Tuple) bool { return a.Key() == b.Key() }),
		cmp.Comparer(func(a, b config.Config) bool { return cmp.Equal(a.Stratifiers, b.Stratifiers) && a.Evaluator == b.Evaluator }),
	)
	assert.Empty(t, diff)
}

func TestWriteRun_ConfigRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()
	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)

	run := testRun("run-1", hash)
	run.Config.EvaluationMaxTuples = 10
	run.Config.DivideByZero = config.DivideByZeroStop
	run.Config.RuleOptimizers = []string{config.OptimizerRemoveDuplicates}
	_, err = s.WriteRun(ctx, run)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), got.Config.EvaluationMaxTuples)
	assert.Equal(t, config.DivideByZeroStop, got.Config.DivideByZero)
	assert.Equal(t, []string{config.OptimizerRemoveDuplicates}, got.Config.RuleOptimizers)
}

func TestWriteRun_ErrorRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()
	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)

	run := testRun("run-err", hash)
	run.Status = RunError
	run.ErrorCode = "TOO_MANY_TUPLES"
	run.ErrorMessage = "derived more than 1 tuples"
	run.AnswerHash = ""
	run.Answers = nil
	_, err = s.WriteRun(ctx, run)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-err")
	require.NoError(t, err)
	assert.Equal(t, RunError, got.Status)
	assert.Equal(t, "TOO_MANY_TUPLES", got.ErrorCode)
	assert.Empty(t, got.Answers)
}

func TestWriteRun_DuplicateIDFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()
	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)

	_, err = s.WriteRun(ctx, testRun("run-1", hash))
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, testRun("run-1", hash))
	require.Error(t, err)

	// The failed transaction left no stray answers behind.
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM answers").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()
	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)

	for _, id := range []string{"run-c", "run-a", "run-b"} {
		_, err := s.WriteRun(ctx, testRun(id, hash))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.Equal(t, "run-b", runs[2].ID)
	assert.Nil(t, runs[0].Answers)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetReplayInput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	facts, rules := testProgram()
	hash, err := s.WriteProgram(ctx, facts, rules)
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, testRun("run-1", hash))
	require.NoError(t, err)

	in, err := s.GetReplayInput(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, facts.Equal(in.Facts))
	assert.Len(t, in.Rules, 1)
	assert.Equal(t, "?- path(1, ?Y).", in.Query.String())

	assert.True(t, in.Matches("answer-hash", ""))
	assert.False(t, in.Matches("other", ""))
	assert.False(t, in.Matches("", "TIMEOUT"))

	_, err = s.GetReplayInput(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
