package kb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/ir"
	"github.com/roach88/stratalog/internal/magic"
	"github.com/roach88/stratalog/internal/store"
)

// KnowledgeBase holds a rule set and a growing set of facts and answers
// queries over them.
//
// Thread-safety: every method may be called from any goroutine. Queries,
// Clean and SetRules serialise on one lock. AddFacts never waits for that
// lock: its facts go into a bounded buffer which whoever holds the lock
// applies before releasing it.
type KnowledgeBase struct {
	mu sync.Mutex

	cfg      config.Config
	rules    []ir.Rule
	builtins *builtin.Registry
	program  *compiler.Program // compiled once with no facts

	facts  ir.Facts
	stamps map[ir.Predicate]map[string]time.Time // windowed predicates only

	// snapshot is the full evaluation of facts, nil when facts changed
	// since it was taken.
	snapshot   *engine.Result
	generation uint64
	cache      *lru.Cache[string, *magic.Program]

	listeners []*listener

	buffer *factBuffer
	closed atomic.Bool

	engine *engine.Engine
	clock  engine.Clock
	ids    IDGenerator
	store  *store.Store
	logger *slog.Logger
	lazy   bool
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(kb *KnowledgeBase) { kb.logger = l }
}

// WithClock sets the clock used for fact windows and timeouts.
func WithClock(c engine.Clock) Option {
	return func(kb *KnowledgeBase) { kb.clock = c }
}

// WithIDGenerator sets the generator for listener and run IDs.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(kb *KnowledgeBase) { kb.ids = g }
}

// WithStore records every query as a run in s.
func WithStore(s *store.Store) Option {
	return func(kb *KnowledgeBase) { kb.store = s }
}

// WithBuiltins replaces the default built-in registry.
func WithBuiltins(reg *builtin.Registry) Option {
	return func(kb *KnowledgeBase) { kb.builtins = reg }
}

// WithLazyEvaluation defers evaluation until a query needs it. Without it
// the knowledge base re-evaluates after every change.
func WithLazyEvaluation() Option {
	return func(kb *KnowledgeBase) { kb.lazy = true }
}

// New compiles rules under cfg and returns an empty knowledge base.
func New(rules []ir.Rule, cfg config.Config, opts ...Option) (*KnowledgeBase, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", compiler.ErrInvalidArgument, errs[0])
	}

	kb := &KnowledgeBase{
		cfg:      cfg,
		builtins: builtin.Default(),
		facts:    ir.Facts{},
		stamps:   make(map[ir.Predicate]map[string]time.Time),
		clock:    engine.SystemClock{},
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(kb)
	}
	kb.engine = engine.New(engine.WithLogger(kb.logger), engine.WithClock(kb.clock))
	kb.buffer = newFactBuffer(cfg.KB.BufferSize)

	if cfg.KB.CacheSize > 0 {
		cache, err := lru.New[string, *magic.Program](cfg.KB.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create magic program cache: %w", err)
		}
		kb.cache = cache
	}

	program, err := kb.compile(rules)
	if err != nil {
		return nil, err
	}
	kb.rules = append([]ir.Rule(nil), rules...)
	kb.program = program

	if !kb.lazy {
		if _, err := kb.refreshLocked(context.Background()); err != nil {
			return nil, err
		}
	}
	return kb, nil
}

func (kb *KnowledgeBase) compile(rules []ir.Rule) (*compiler.Program, error) {
	return compiler.Compile(ir.Facts{}, rules, kb.cfg,
		compiler.WithBuiltins(kb.builtins),
		compiler.WithLogger(kb.logger),
	)
}

// AddFacts adds ground facts. It returns once the facts are buffered and,
// if no other goroutine holds the lock, applied. A full buffer blocks until
// space frees up or ctx is done.
func (kb *KnowledgeBase) AddFacts(ctx context.Context, atoms ...ir.Atom) error {
	if len(atoms) == 0 {
		return nil
	}
	var errs compiler.ValidationErrors
	for i, a := range atoms {
		field := fmt.Sprintf("facts[%d]", i)
		errs = append(errs, compiler.ValidateFact(field, a)...)
		if kb.builtins.IsBuiltin(a.Predicate) {
			errs = append(errs, compiler.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is a built-in", a.Predicate),
				Code:    compiler.ErrBuiltinHead,
			})
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", compiler.ErrInvalidArgument, errs)
	}

	b := batch{atoms: append([]ir.Atom(nil), atoms...), at: kb.clock.Now()}
	if err := kb.buffer.Enqueue(ctx, b); err != nil {
		return err
	}
	return kb.flush(ctx)
}

// flush applies buffered batches unless another goroutine holds the lock,
// in which case that goroutine applies them when it unlocks.
func (kb *KnowledgeBase) flush(ctx context.Context) error {
	var first error
	for kb.buffer.Len() > 0 {
		if !kb.mu.TryLock() {
			return first
		}
		notes, err := kb.applyLocked(ctx)
		kb.mu.Unlock()
		notify(notes)
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// lock takes the lock and applies facts buffered so far, so the caller sees
// every AddFacts call that returned before it.
func (kb *KnowledgeBase) lock(ctx context.Context) []notification {
	kb.mu.Lock()
	if kb.buffer.Len() == 0 {
		return nil
	}
	notes, err := kb.applyLocked(ctx)
	if err != nil {
		kb.logger.Warn("applying buffered facts failed", "error", err)
	}
	return notes
}

// unlock releases the lock, runs listener callbacks and applies facts
// buffered while the lock was held.
func (kb *KnowledgeBase) unlock(ctx context.Context, notes []notification) {
	kb.mu.Unlock()
	notify(notes)
	if err := kb.flush(ctx); err != nil {
		kb.logger.Warn("applying buffered facts failed", "error", err)
	}
}

// applyLocked moves buffered facts into the knowledge base. Facts stay
// added even when the re-evaluation that follows fails.
func (kb *KnowledgeBase) applyLocked(ctx context.Context) ([]notification, error) {
	batches := kb.buffer.Drain()
	added := 0
	for _, b := range batches {
		for _, a := range b.atoms {
			if kb.facts.Add(a) {
				added++
			}
			if kb.cfg.Window(a.Predicate.Symbol) > 0 {
				kb.stamp(a, b.at)
			}
		}
	}
	if added == 0 {
		return nil, nil
	}
	kb.logger.Debug("facts applied", "batches", len(batches), "added", added)
	kb.invalidate()
	return kb.refreshLocked(ctx)
}

// stamp records when a windowed fact was last asserted.
func (kb *KnowledgeBase) stamp(a ir.Atom, at time.Time) {
	m := kb.stamps[a.Predicate]
	if m == nil {
		m = make(map[string]time.Time)
		kb.stamps[a.Predicate] = m
	}
	m[a.Tuple.Key()] = at
}

func (kb *KnowledgeBase) invalidate() {
	kb.snapshot = nil
	if kb.cache != nil {
		kb.cache.Purge()
	}
}

// refreshLocked re-evaluates the program over the current facts and
// collects the answers owed to listeners. Lazy knowledge bases without
// listeners skip evaluation.
func (kb *KnowledgeBase) refreshLocked(ctx context.Context) ([]notification, error) {
	if kb.lazy && len(kb.listeners) == 0 {
		return nil, nil
	}
	res, err := kb.engine.Evaluate(ctx, kb.program.WithFacts(kb.facts), kb.cfg)
	if err != nil {
		return nil, fmt.Errorf("re-evaluate: %w", err)
	}
	kb.snapshot = res
	kb.generation++

	notes := make([]notification, 0, len(kb.listeners))
	for _, l := range kb.listeners {
		ans, err := res.Answer(l.query, kb.cfg)
		if err != nil {
			kb.logger.Warn("listener query failed", "listener", l.id, "error", err)
			continue
		}
		notes = append(notes, notification{fn: l.fn, answer: ans})
	}
	kb.logger.Debug("knowledge base evaluated",
		"generation", kb.generation,
		"facts", kb.facts.Len(),
		"derived", res.Derived,
		"listeners", len(notes),
	)
	return notes, nil
}

// Query answers q over the current facts. Duplicate literals are dropped.
func (kb *KnowledgeBase) Query(ctx context.Context, q ir.Query) (*engine.Answer, error) {
	if kb.closed.Load() {
		return nil, ErrClosed
	}
	q = q.RemoveDuplicateLiterals()
	if err := engine.CheckQuery(q, kb.builtins, kb.cfg); err != nil {
		return nil, err
	}

	notes := kb.lock(ctx)
	start := kb.clock.Now()
	ans, err := kb.answerLocked(ctx, q)
	kb.record(ctx, q, ans, err, start)
	kb.unlock(ctx, notes)
	return ans, err
}

func (kb *KnowledgeBase) answerLocked(ctx context.Context, q ir.Query) (*engine.Answer, error) {
	if kb.snapshot != nil {
		return kb.snapshot.Answer(q, kb.cfg)
	}

	if kb.cfg.MagicSets && magic.Rewritable(kb.program, q) {
		mp, err := kb.magicProgram(q)
		switch {
		case err == nil:
			ans, err := kb.engine.QueryMagic(ctx, mp, kb.cfg)
			if err != nil {
				return nil, err
			}
			// Cached programs are shared by variants of q.
			ans.Query = q
			ans.Variables = q.Variables()
			return ans, nil
		case compiler.IsNotStratified(err):
			kb.logger.Debug("magic program not stratifiable, evaluating in full", "query", q.String())
		default:
			return nil, err
		}
	}

	res, err := kb.engine.Evaluate(ctx, kb.program.WithFacts(kb.facts), kb.cfg)
	if err != nil {
		return nil, err
	}
	kb.snapshot = res
	kb.generation++
	return res.Answer(q, kb.cfg)
}

// magicProgram returns the magic-sets program for q, from the cache when a
// variant of q was rewritten since the facts last changed.
func (kb *KnowledgeBase) magicProgram(q ir.Query) (*magic.Program, error) {
	key := ir.QueryVariantKey(q)
	if kb.cache != nil {
		if mp, ok := kb.cache.Get(key); ok {
			return mp, nil
		}
	}
	mp, err := magic.AdornForQuery(kb.program.WithFacts(kb.facts), q, kb.cfg,
		compiler.WithLogger(kb.logger))
	if err != nil {
		return nil, err
	}
	if kb.cache != nil {
		kb.cache.Add(key, mp)
	}
	return mp, nil
}

// Clean removes windowed facts asserted longer ago than their window and
// returns how many were removed.
func (kb *KnowledgeBase) Clean(ctx context.Context) (int, error) {
	if kb.closed.Load() {
		return 0, ErrClosed
	}
	notes := kb.lock(ctx)
	now := kb.clock.Now()
	removed := 0
	for pred, stamps := range kb.stamps {
		window := kb.cfg.Window(pred.Symbol)
		expired := make(map[string]bool)
		for key, at := range stamps {
			if now.Sub(at) >= window {
				expired[key] = true
				delete(stamps, key)
			}
		}
		if len(expired) == 0 {
			continue
		}
		if rel := kb.facts.Relation(pred); rel != nil {
			kb.facts[pred] = rel.Filter(func(t ir.Tuple) bool { return !expired[t.Key()] })
		}
		removed += len(expired)
	}

	var err error
	if removed > 0 {
		kb.logger.Debug("expired facts removed", "removed", removed)
		kb.invalidate()
		var more []notification
		more, err = kb.refreshLocked(ctx)
		notes = append(notes, more...)
	}
	kb.unlock(ctx, notes)
	return removed, err
}

// SetRules replaces the rule set. On a compile error the old rules stay.
func (kb *KnowledgeBase) SetRules(ctx context.Context, rules []ir.Rule) error {
	if kb.closed.Load() {
		return ErrClosed
	}
	program, err := kb.compile(rules)
	if err != nil {
		return err
	}

	notes := kb.lock(ctx)
	kb.rules = append([]ir.Rule(nil), rules...)
	kb.program = program
	kb.invalidate()
	more, err := kb.refreshLocked(ctx)
	kb.unlock(ctx, append(notes, more...))
	return err
}

// Facts returns a copy of the asserted facts, including any still buffered.
func (kb *KnowledgeBase) Facts() ir.Facts {
	ctx := context.Background()
	notes := kb.lock(ctx)
	facts := kb.facts.Clone()
	kb.unlock(ctx, notes)
	return facts
}

// Rules returns the current rule set.
func (kb *KnowledgeBase) Rules() []ir.Rule {
	kb.mu.Lock()
	rules := append([]ir.Rule(nil), kb.rules...)
	kb.unlock(context.Background(), nil)
	return rules
}

// Generation counts completed evaluations.
func (kb *KnowledgeBase) Generation() uint64 {
	kb.mu.Lock()
	n := kb.generation
	kb.unlock(context.Background(), nil)
	return n
}

// Close rejects further facts and queries. Blocked AddFacts calls return
// ErrClosed. Close does not close the store.
func (kb *KnowledgeBase) Close() {
	kb.closed.Store(true)
	kb.buffer.Close()
}
