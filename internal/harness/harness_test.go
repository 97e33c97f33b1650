package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func graphProgram(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", "programs", "graph.cue"))
	require.NoError(t, err)
	return path
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_GraphReach(t *testing.T) {
	result, err := Run(context.Background(), loadTestScenario(t, "graph_reach"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "global", result.Stratifier)
	assert.Equal(t, 2, result.Strata)
	require.Len(t, result.Queries, 3)

	first := result.Queries[0]
	assert.Equal(t, "?- path(1, ?Y).", first.Query)
	assert.Equal(t, 3, first.Count)
	assert.True(t, first.Rewritten)
	assert.NotEmpty(t, first.AnswerHash)
	assert.Equal(t, "graph_reach-1", first.RunID)
	assert.Equal(t, "graph_reach-3", result.Queries[2].RunID)
}

func TestRun_RecordsRunsInStore(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	result, err := Run(ctx, loadTestScenario(t, "tuple_limit"), WithStore(st))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, len(result.Queries))

	failed := 0
	for _, r := range runs {
		if r.Status == store.RunError {
			failed++
			assert.Equal(t, string(engine.ErrCodeTooManyTuples), r.ErrorCode)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRun_FailedExpectations(t *testing.T) {
	three := 3
	no := false
	s := &Scenario{
		Name:    "wrong",
		Program: graphProgram(t),
		Queries: []QueryStep{
			{Query: `{path: [1, "?Y"]}`, Expect: &ExpectClause{Answers: []string{"path(1, 2)"}}},
			{Query: `{path: [5, "?Y"]}`, Expect: &ExpectClause{Count: &three, Rewritten: &no}},
			{Query: `{edge: [1, "?Y"]}`, Expect: &ExpectClause{Error: "TIMEOUT"}},
		},
		Assertions: []Assertion{{Type: AssertStrata, Count: 5}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "answers mismatch")
	assert.Contains(t, result.Errors[1], "expected 3 answers, got 1")
	assert.Contains(t, result.Errors[2], "expected rewritten=false, got true")
	assert.Contains(t, result.Errors[3], `expected error "TIMEOUT", got ""`)
	assert.Contains(t, result.Errors[4], "assertions[0]")
}

func TestRun_UnexpectedQueryError(t *testing.T) {
	s := &Scenario{
		Name:    "limit",
		Program: graphProgram(t),
		Config:  map[string]any{"evaluation_max_tuples": 2},
		Queries: []QueryStep{{Query: `{path: ["?X", "?Y"]}`}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Queries, 1)
	assert.Equal(t, "TOO_MANY_TUPLES", result.Queries[0].Error)
	assert.Contains(t, result.Errors[0], "unexpected error TOO_MANY_TUPLES")
}

func TestRun_CompileOutcome(t *testing.T) {
	negcycle, err := filepath.Abs(filepath.Join("testdata", "programs", "negcycle.cue"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		program    string
		config     map[string]any
		expect     string
		wantPass   bool
		wantErrMsg string
	}{
		{"expected and got", negcycle, map[string]any{"stratifiers": []string{"global"}}, "NOT_STRATIFIED", true, ""},
		{"wrong code", negcycle, map[string]any{"stratifiers": []string{"global"}}, "RULE_UNSAFE", false, "expected compile error RULE_UNSAFE, got NOT_STRATIFIED"},
		{"unexpected", negcycle, map[string]any{"stratifiers": []string{"global"}}, "", false, "program did not compile"},
		{"missing", graphProgram(t), nil, "NOT_STRATIFIED", false, "program compiled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Scenario{
				Name:         "compile",
				Program:      tt.program,
				Config:       tt.config,
				CompileError: tt.expect,
				Queries:      []QueryStep{{Query: `{p: ["?X"]}`}},
			}
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPass, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Queries)
			if tt.wantErrMsg != "" {
				require.NotEmpty(t, result.Errors)
				assert.Contains(t, result.Errors[0], tt.wantErrMsg)
			}
		})
	}
}

func TestRun_SetupErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, &Scenario{Name: "missing", Program: filepath.Join(t.TempDir(), "none.cue")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario missing")

	_, err = Run(ctx, &Scenario{Name: "badcfg", Program: graphProgram(t), Config: map[string]any{"evaluator": "backwards"}})
	require.Error(t, err)

	_, err = Run(ctx, &Scenario{
		Name:    "badquery",
		Program: graphProgram(t),
		Queries: []QueryStep{{Query: `{path: [1, "?Y"]`}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queries[0]")
}

func TestRun_StepClockIsDeterministic(t *testing.T) {
	s := loadTestScenario(t, "arith_limits")
	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	require.True(t, first.Pass, "errors: %v", first.Errors)
	assert.Equal(t, first.Render(), second.Render())
	assert.Equal(t, "TIMEOUT", first.Queries[0].Error)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", engine.NewTimeoutError(1, 50, 60), string(engine.ErrCodeTimeout)},
		{"invalid argument", fmt.Errorf("bad: %w", compiler.ErrInvalidArgument), CodeInvalidArgument},
		{"cancelled", fmt.Errorf("stop: %w", context.Canceled), CodeCancelled},
		{"deadline", context.DeadlineExceeded, CodeCancelled},
		{"head equality", &compiler.HeadEqualityError{}, CodeHeadEquality},
		{"other", errors.New("boom"), CodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
