package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/stratalog/internal/ir"
)

// RunFilter selects runs. Zero fields match everything; set fields are
// combined with AND.
type RunFilter struct {
	Status      RunStatus
	ErrorCode   string
	ProgramHash string
	// Query matches runs of the same query up to variable renaming.
	Query *ir.Query
	// Rewritten restricts to runs answered (true) or not answered (false)
	// by a magic-sets program.
	Rewritten *bool
	// Limit caps the result. Zero returns every match.
	Limit int
}

// compile builds a parameterized SELECT for f. Values never appear in the
// SQL text. The ORDER BY always ends on id so equal seqs cannot reorder.
func (f RunFilter) compile() (string, []any) {
	var (
		conds []string
		args  []any
	)
	eq := func(col string, v any) {
		conds = append(conds, col+" = ?")
		args = append(args, v)
	}
	if f.Status != "" {
		eq("status", string(f.Status))
	}
	if f.ErrorCode != "" {
		eq("error_code", f.ErrorCode)
	}
	if f.ProgramHash != "" {
		eq("program_hash", f.ProgramHash)
	}
	if f.Query != nil {
		eq("query_hash", ir.QueryHash(*f.Query))
	}
	if f.Rewritten != nil {
		eq("rewritten", boolToInt(*f.Rewritten))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + runColumns + ` FROM runs`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY seq ASC, id COLLATE BINARY ASC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	return b.String(), args
}

// FindRuns returns the runs matching f without their answers, oldest first.
func (s *Store) FindRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	if f.Limit < 0 {
		return nil, fmt.Errorf("find runs: negative limit %d", f.Limit)
	}
	query, args := f.compile()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
