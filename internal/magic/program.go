package magic

import (
	"fmt"
	"log/slog"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// Program is a compiled program specialised for one query. When Rewritten is
// false the query had nothing to propagate and Program is the original.
type Program struct {
	*compiler.Program
	// Query is the query to answer against Program. For a rewritten program
	// it names the adorned answer predicate.
	Query     ir.Query
	Adorned   *AdornedProgram
	Rewritten bool
}

// Rewritable reports whether magic sets can restrict evaluation of q over p:
// q is one positive literal over a derived predicate with a bound argument.
func Rewritable(p *compiler.Program, q ir.Query) bool {
	if len(q.Literals) != 1 {
		return false
	}
	lit := q.Literals[0]
	return lit.Positive &&
		p.IsIDB(lit.Predicate()) &&
		AdornmentOf(lit.Atom.Tuple, nil).HasBound()
}

// AdornForQuery adorns and rewrites program for query, then compiles the
// result with cfg. Queries Rewritable rejects come back unchanged.
func AdornForQuery(program *compiler.Program, query ir.Query, cfg config.Config, opts ...compiler.Option) (*Program, error) {
	if program == nil {
		return nil, fmt.Errorf("nil program: %w", compiler.ErrInvalidArgument)
	}
	if errs := compiler.ValidateQuery(query); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", compiler.ErrInvalidArgument, compiler.ValidationErrors(errs))
	}
	if len(query.Literals) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrMultiLiteralQuery, query)
	}
	if !Rewritable(program, query) {
		return &Program{Program: program, Query: query}, nil
	}

	adorned, err := Adorn(program.Rules, query, program.Builtins)
	if err != nil {
		return nil, err
	}
	rw := Rewrite(adorned, program.Rules, program.Facts)

	facts := program.Facts.Clone()
	facts.Add(rw.Seed)
	opts = append([]compiler.Option{
		compiler.WithBuiltins(program.Builtins),
		compiler.WithAdornedSymbols(),
	}, opts...)
	compiled, err := compiler.Compile(facts, rw.Rules, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile magic program for %s: %w", query, err)
	}
	slog.Debug("magic program built",
		"query", query.String(),
		"adorned", len(adorned.Predicates),
		"rules", len(compiled.Rules),
	)
	return &Program{Program: compiled, Query: rw.Query, Adorned: adorned, Rewritten: true}, nil
}
