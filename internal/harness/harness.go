package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/ir"
	"github.com/roach88/stratalog/internal/kb"
	"github.com/roach88/stratalog/internal/store"
	"github.com/roach88/stratalog/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and run IDs.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequenceIDGenerator
	logger *slog.Logger
	step   time.Duration
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithStore records the scenario's runs in s instead of a fresh in-memory
// database.
func WithStore(s *store.Store) Option {
	return func(h *Harness) { h.store = s }
}

// Run executes a test scenario and returns the result.
//
// Failed expectations mark the result as failed; only a scenario that
// cannot be set up (unreadable program, bad config, malformed query)
// returns an error.
//
// Execution flow:
// 1. Load the program and layer the config overrides over the defaults
// 2. Compile, checking compile_error when given
// 3. Answer each query, record it as a run and replay the run
// 4. Evaluate in full and check assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg, err := scenario.ScenarioConfig()
	if err != nil {
		return nil, err
	}
	src, err := compiler.LoadSource(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	h := &Harness{
		ids:    testutil.NewSequenceIDGenerator(scenario.Name),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		step:   time.Duration(scenario.ClockStepMillis) * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.store == nil {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		h.store = st
	}

	result := NewResult(scenario.Name)
	program, err := compiler.Compile(src.Facts, src.Rules, cfg, compiler.WithLogger(h.logger))
	if !h.checkCompile(scenario, err, result) {
		return result, nil
	}
	result.Stratifier = program.Stratifier
	result.Strata = len(program.Strata)

	hash, err := h.store.WriteProgram(ctx, src.Facts, src.Rules)
	if err != nil {
		return nil, fmt.Errorf("record program: %w", err)
	}

	for i, step := range scenario.Queries {
		q, err := compiler.ParseQuery(step.Query)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: queries[%d]: %w", scenario.Name, i, err)
		}
		tr, err := h.runQuery(ctx, program, hash, q, cfg)
		if err != nil {
			return nil, err
		}
		result.Queries = append(result.Queries, tr)
		for _, msg := range checkExpect(i, step.Expect, tr) {
			result.AddError(msg)
		}
		h.logger.Info("query completed",
			"step", i,
			"query", tr.Query,
			"answers", tr.Count,
			"error", tr.Error,
		)
	}

	if len(scenario.Assertions) > 0 {
		res, err := h.engine().Evaluate(ctx, program, cfg)
		if err != nil {
			result.AddError(fmt.Sprintf("evaluation failed: %v", err))
			return result, nil
		}
		actx := &AssertionContext{Facts: res.Facts, Program: program}
		for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
			result.AddError(msg)
		}
	}
	return result, nil
}

// engine returns a fresh engine with its own clock, so every evaluation
// sees the same sequence of clock readings.
func (h *Harness) engine() *engine.Engine {
	var clock engine.Clock = testutil.NewFakeClock(time.Time{})
	if h.step > 0 {
		clock = testutil.NewStepClock(h.step)
	}
	return engine.New(engine.WithLogger(h.logger), engine.WithClock(clock))
}

// checkCompile compares the compile outcome with the scenario's
// compile_error and reports whether queries should run.
func (h *Harness) checkCompile(scenario *Scenario, err error, result *Result) bool {
	result.CompileError = ErrorCode(err)
	switch {
	case err == nil && scenario.CompileError == "":
		return true
	case err == nil:
		result.AddError(fmt.Sprintf("expected compile error %s, program compiled", scenario.CompileError))
	case scenario.CompileError == "":
		result.AddError(fmt.Sprintf("program did not compile: %v", err))
	case result.CompileError != scenario.CompileError:
		result.AddError(fmt.Sprintf("expected compile error %s, got %s: %v", scenario.CompileError, result.CompileError, err))
	}
	return false
}

// runQuery answers q, records the run and checks that replaying the run
// reproduces it.
func (h *Harness) runQuery(ctx context.Context, program *compiler.Program, hash string, q ir.Query, cfg config.Config) (QueryTrace, error) {
	tr := QueryTrace{Query: q.String(), Answers: []string{}}
	run := store.Run{
		ID:          h.ids.Generate(),
		ProgramHash: hash,
		Query:       q,
		Config:      cfg,
		StartedAt:   testutil.Epoch,
	}

	ans, err := h.engine().Query(ctx, program, q, cfg)
	if err != nil {
		tr.Error = ErrorCode(err)
		run.Status = store.RunError
		run.ErrorCode = string(engine.Code(err))
		run.ErrorMessage = err.Error()
	} else {
		for _, a := range ans.Instances() {
			tr.Answers = append(tr.Answers, a.String())
		}
		slices.Sort(tr.Answers)
		tr.Count = ans.Len()
		tr.Rewritten = ans.Rewritten
		tr.AnswerHash = ans.Hash()
		tr.Stats = Stats{Rounds: ans.Stats.Rounds, Derived: ans.Stats.Derived}

		run.Status = store.RunOK
		run.Evaluator = ans.Stats.Evaluator
		run.Rewritten = ans.Rewritten
		run.Rounds = ans.Stats.Rounds
		run.Derived = ans.Stats.Derived
		run.Variables = ans.Variables
		run.AnswerHash = tr.AnswerHash
		run.Answers = ans.Bindings.Sorted()
	}

	if _, err := h.store.WriteRun(ctx, run); err != nil {
		return tr, fmt.Errorf("record run %s: %w", run.ID, err)
	}
	tr.RunID = run.ID

	in, err := h.store.GetReplayInput(ctx, run.ID)
	if err != nil {
		return tr, fmt.Errorf("read back run %s: %w", run.ID, err)
	}
	if rr := kb.Replay(ctx, in, h.engine()); !rr.Match {
		got := ErrorCode(rr.Err)
		if rr.Answer != nil {
			got = rr.Answer.Hash()
		}
		return tr, fmt.Errorf("run %s does not replay: recorded %s%s, replayed %s",
			run.ID, run.AnswerHash, run.ErrorCode, got)
	}
	return tr, nil
}

// checkExpect compares a query trace with its expect clause.
func checkExpect(i int, exp *ExpectClause, tr QueryTrace) []string {
	if exp == nil {
		if tr.Error != "" {
			return []string{fmt.Sprintf("queries[%d] %s: unexpected error %s", i, tr.Query, tr.Error)}
		}
		return nil
	}

	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("queries[%d] %s: ", i, tr.Query)+fmt.Sprintf(format, args...))
	}

	if exp.Error != "" || tr.Error != "" {
		if exp.Error != tr.Error {
			fail("expected error %q, got %q", exp.Error, tr.Error)
		}
		return errs
	}

	if exp.Answers != nil {
		want := slices.Clone(exp.Answers)
		slices.Sort(want)
		if diff := cmp.Diff(want, tr.Answers); diff != "" {
			fail("answers mismatch (-want +got):\n%s", diff)
		}
	}
	if exp.Count != nil && *exp.Count != tr.Count {
		fail("expected %d answers, got %d", *exp.Count, tr.Count)
	}
	if exp.Rewritten != nil && *exp.Rewritten != tr.Rewritten {
		fail("expected rewritten=%t, got %t", *exp.Rewritten, tr.Rewritten)
	}
	return errs
}
