package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
	"github.com/roach88/stratalog/internal/magic"
)

// Engine evaluates compiled programs. It holds no program state, so one
// Engine may serve any number of programs and goroutines; each call runs
// single-threaded to completion, an error, or a limit.
type Engine struct {
	logger *slog.Logger
	clock  Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock the timeout is measured with.
// Use a fake clock in tests that exercise evaluation_timeout_ms.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default(), clock: SystemClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result holds every relation after evaluation: the program's facts plus
// everything derived from them.
type Result struct {
	Facts ir.Facts
	// Rounds is the number of rounds each stratum took to saturate.
	Rounds []int
	// Derived counts the tuples added by rules.
	Derived   uint64
	Evaluator string

	builtins *builtin.Registry
}

// Relation returns the relation of p, or nil when nothing holds for it.
func (r *Result) Relation(p ir.Predicate) *ir.Relation { return r.Facts.Relation(p) }

// TotalRounds sums Rounds.
func (r *Result) TotalRounds() int {
	n := 0
	for _, k := range r.Rounds {
		n += k
	}
	return n
}

// Evaluate saturates program stratum by stratum. Lower strata are complete
// before a higher one starts, so negation only ever reads finished
// relations. On error nothing is returned: a partial fixpoint is not an
// answer.
func (e *Engine) Evaluate(ctx context.Context, program *compiler.Program, cfg config.Config) (*Result, error) {
	if program == nil {
		return nil, fmt.Errorf("nil program: %w", compiler.ErrInvalidArgument)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", compiler.ErrInvalidArgument, errs[0])
	}
	ev, err := NewEvaluator(cfg.Evaluator)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", compiler.ErrInvalidArgument, err)
	}

	st := &state{
		db:     program.Facts.Clone(),
		quota:  NewQuotaEnforcer(LimitsFrom(cfg), e.clock),
		join:   newJoiner(program.Builtins, cfg),
		logger: e.logger,
	}
	if err := st.checkpoint(ctx); err != nil {
		return nil, err
	}

	res := &Result{
		Rounds:    make([]int, len(program.Strata)),
		Evaluator: ev.Name(),
		builtins:  program.Builtins,
	}
	for i, stratum := range program.Strata {
		st.stratum = i
		st.quota.Enter(i)

		heads := make(map[ir.Predicate]bool, len(stratum))
		for _, r := range stratum {
			heads[r.HeadPredicate()] = true
		}
		plans := make([]plan, len(stratum))
		for k, r := range stratum {
			plans[k] = newPlan(r, heads, program.Builtins)
		}

		rounds, err := ev.saturate(ctx, st, plans)
		if err != nil {
			e.logger.Debug("evaluation aborted",
				"stratum", i,
				"rounds", rounds,
				"derived", st.quota.Current(),
				"error", err,
			)
			return nil, err
		}
		res.Rounds[i] = rounds
		e.logger.Debug("stratum saturated", "stratum", i, "rules", len(stratum), "rounds", rounds)
	}

	res.Facts = st.db
	res.Derived = st.quota.Current()
	e.logger.Debug("evaluation complete",
		"program", program.Hash,
		"evaluator", res.Evaluator,
		"strata", len(program.Strata),
		"derived", res.Derived,
	)
	return res, nil
}

// Query answers query over program. Duplicate literals are dropped first.
// With cfg.MagicSets a single-literal query with a bound argument is
// answered from a magic-sets rewrite of program, otherwise program is
// evaluated in full and matched against.
func (e *Engine) Query(ctx context.Context, program *compiler.Program, query ir.Query, cfg config.Config) (*Answer, error) {
	if program == nil {
		return nil, fmt.Errorf("nil program: %w", compiler.ErrInvalidArgument)
	}
	query = query.RemoveDuplicateLiterals()
	if err := CheckQuery(query, program.Builtins, cfg); err != nil {
		return nil, err
	}

	if cfg.MagicSets && magic.Rewritable(program, query) {
		mp, err := magic.AdornForQuery(program, query, cfg, compiler.WithLogger(e.logger))
		switch {
		case err == nil:
			return e.QueryMagic(ctx, mp, cfg)
		case compiler.IsNotStratified(err):
			e.logger.Debug("magic program not stratifiable, evaluating in full", "query", query.String())
		default:
			return nil, err
		}
	}

	res, err := e.Evaluate(ctx, program, cfg)
	if err != nil {
		return nil, err
	}
	return res.Answer(query, cfg)
}

// QueryMagic evaluates a program built by magic.AdornForQuery and answers
// its query. The answer carries the query as the caller wrote it.
func (e *Engine) QueryMagic(ctx context.Context, mp *magic.Program, cfg config.Config) (*Answer, error) {
	if mp == nil || mp.Program == nil {
		return nil, fmt.Errorf("nil magic program: %w", compiler.ErrInvalidArgument)
	}
	res, err := e.Evaluate(ctx, mp.Program, cfg)
	if err != nil {
		return nil, err
	}
	ans, err := res.Answer(mp.Query, cfg)
	if err != nil {
		return nil, err
	}
	if mp.Rewritten {
		ans.Query = mp.Adorned.Query
		ans.Variables = mp.Adorned.Query.Variables()
		ans.Rewritten = true
	}
	return ans, nil
}

// CheckQuery rejects empty or malformed queries and queries with a variable
// no positive literal can bind.
func CheckQuery(query ir.Query, reg *builtin.Registry, cfg config.Config) error {
	if errs := compiler.ValidateQuery(query); len(errs) > 0 {
		return fmt.Errorf("%w: %w", compiler.ErrInvalidArgument, compiler.ValidationErrors(errs))
	}
	vars := query.Variables()
	head := make(ir.Tuple, len(vars))
	for i, v := range vars {
		head[i] = v
	}
	asRule := ir.Rule{
		Head: []ir.Literal{ir.Pos(ir.Atom{Predicate: ir.Predicate{Symbol: "query", Arity: len(head)}, Tuple: head})},
		Body: query.Literals,
	}
	if err := compiler.NewSafetyAnalyzer(cfg, reg).Analyze(asRule); err != nil {
		return fmt.Errorf("query %s: %w", query, err)
	}
	return nil
}
