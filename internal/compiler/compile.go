package compiler

import (
	"fmt"
	"log/slog"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Program is a validated, safe, stratified rule set with its base facts.
// It is immutable once returned by Compile.
type Program struct {
	Facts ir.Facts
	// Source holds the rules as given to Compile.
	Source []ir.Rule
	// Rules after head equality handling and optimisation, in stratum order.
	Rules []ir.Rule
	// Strata holds rules grouped by stratum, lowest first, each stratum
	// ordered dependency-first.
	Strata [][]ir.Rule
	// Stratifier names the strategy that succeeded.
	Stratifier string
	// Hash identifies the facts and source rules.
	Hash     string
	Builtins *builtin.Registry

	idb map[ir.Predicate]bool
}

// IsIDB reports whether some rule derives p.
func (p *Program) IsIDB(pred ir.Predicate) bool { return p.idb[pred] }

// WithFacts returns a copy of p evaluated over facts instead of p.Facts.
// Rules and strata are shared; facts are not copied.
func (p *Program) WithFacts(facts ir.Facts) *Program {
	out := *p
	out.Facts = facts
	out.Hash = ir.ProgramHash(facts, p.Source)
	return &out
}

// IDB returns the derived predicates, sorted.
func (p *Program) IDB() []ir.Predicate {
	out := make([]ir.Predicate, 0, len(p.idb))
	for pred := range p.idb {
		out = append(out, pred)
	}
	ir.SortPredicates(out)
	return out
}

type compileOptions struct {
	builtins    *builtin.Registry
	logger      *slog.Logger
	stratifiers []Stratifier
	optimizers  []RuleOptimizer
	adorned     bool
}

// Option configures Compile.
type Option func(*compileOptions)

// WithBuiltins sets the built-in registry. Default: builtin.Default().
func WithBuiltins(reg *builtin.Registry) Option {
	return func(o *compileOptions) { o.builtins = reg }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *compileOptions) { o.logger = l }
}

// WithStratifiers overrides the stratifiers named in the configuration.
func WithStratifiers(s ...Stratifier) Option {
	return func(o *compileOptions) { o.stratifiers = append([]Stratifier{}, s...) }
}

// WithOptimizers overrides the rule optimisers named in the configuration.
// With no arguments rules are compiled as written.
func WithOptimizers(opts ...RuleOptimizer) Option {
	return func(o *compileOptions) { o.optimizers = append([]RuleOptimizer{}, opts...) }
}

// WithAdornedSymbols permits the reserved '^' in predicate symbols. Only the
// magic-sets rewrite produces such predicates.
func WithAdornedSymbols() Option {
	return func(o *compileOptions) { o.adorned = true }
}

// Compile validates, safety-checks, optimises and stratifies rules.
// facts may be nil.
func Compile(facts ir.Facts, rules []ir.Rule, cfg config.Config, opts ...Option) (*Program, error) {
	o := compileOptions{builtins: builtin.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, errs[0])
	}
	if facts == nil {
		facts = ir.Facts{}
	}

	var verrs ValidationErrors
	verrs = append(verrs, ValidateFacts(facts)...)
	verrs = append(verrs, ValidateRules(rules, o.builtins)...)
	if o.adorned {
		verrs = dropCode(verrs, ErrReservedSymbol)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, verrs)
	}

	handlers := make([]HeadEqualityHandler, 0, len(cfg.HeadEquality))
	for _, name := range cfg.HeadEquality {
		h, err := NewHeadEqualityHandler(name, o.builtins, o.logger)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	handled, err := HandleHeadEquality(rules, handlers)
	if err != nil {
		return nil, err
	}

	safety := NewSafetyAnalyzer(cfg, o.builtins)
	for _, r := range handled {
		if err := safety.Analyze(r); err != nil {
			return nil, err
		}
	}

	optimizers := o.optimizers
	if optimizers == nil {
		for _, name := range cfg.RuleOptimizers {
			opt, err := NewOptimizer(name, o.builtins)
			if err != nil {
				return nil, err
			}
			optimizers = append(optimizers, opt)
		}
	}
	optimized := make([]ir.Rule, len(handled))
	for i, r := range handled {
		optimized[i] = Optimize(r, optimizers)
		if err := safety.Analyze(optimized[i]); err != nil {
			return nil, fmt.Errorf("rule became unsafe after optimisation: %w", err)
		}
	}

	stratifiers := o.stratifiers
	if stratifiers == nil {
		for _, name := range cfg.Stratifiers {
			s, err := NewStratifier(name, o.builtins)
			if err != nil {
				return nil, err
			}
			stratifiers = append(stratifiers, s)
		}
	}
	strata, winner, err := Stratify(optimized, stratifiers, o.logger)
	if err != nil {
		return nil, err
	}

	p := &Program{
		Facts:      facts.Clone(),
		Source:     append([]ir.Rule(nil), rules...),
		Strata:     make([][]ir.Rule, len(strata)),
		Stratifier: winner,
		Hash:       ir.ProgramHash(facts, rules),
		Builtins:   o.builtins,
		idb:        make(map[ir.Predicate]bool),
	}
	for i, stratum := range strata {
		p.Strata[i] = reorderStratum(stratum)
		p.Rules = append(p.Rules, p.Strata[i]...)
	}
	for _, r := range p.Rules {
		p.idb[r.HeadPredicate()] = true
	}

	o.logger.Debug("program compiled",
		"hash", p.Hash,
		"rules", len(p.Rules),
		"strata", len(p.Strata),
		"stratifier", winner,
	)
	return p, nil
}

func dropCode(errs ValidationErrors, code string) ValidationErrors {
	out := errs[:0]
	for _, e := range errs {
		if e.Code != code {
			out = append(out, e)
		}
	}
	return out
}
