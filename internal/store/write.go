package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/stratalog/internal/ir"
)

// WriteProgram stores facts and rules under their program hash and returns it.
// Uses ON CONFLICT(hash) DO NOTHING for idempotency - writing the same
// program twice is a no-op.
func (s *Store) WriteProgram(ctx context.Context, facts ir.Facts, rules []ir.Rule) (string, error) {
	hash := ir.ProgramHash(facts, rules)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs (hash, body, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		hash,
		string(ir.MarshalProgram(facts, rules)),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("write program: %w", err)
	}
	return hash, nil
}

// WriteRun inserts a run and its answer tuples in one transaction and
// returns the assigned seq. The program referenced by ProgramHash must
// exist (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, run Run) (int64, error) {
	cfgText, err := marshalConfig(run.Config)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}
	varsJSON, err := marshalVariables(run.Variables)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, program_hash, query, query_text, query_hash, config, status,
		 error_code, error_message, evaluator, rewritten, rounds, derived,
		 variables, answer_hash, started_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.ProgramHash,
		string(ir.MarshalQuery(run.Query)),
		run.Query.String(),
		ir.QueryHash(run.Query),
		cfgText,
		string(run.Status),
		run.ErrorCode,
		run.ErrorMessage,
		run.Evaluator,
		boolToInt(run.Rewritten),
		run.Rounds,
		int64(run.Derived),
		varsJSON,
		run.AnswerHash,
		formatTime(run.StartedAt),
		run.Duration.Microseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("write run: insert: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write run: last insert id: %w", err)
	}

	for i, t := range run.Answers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO answers (run_id, position, tuple) VALUES (?, ?, ?)
		`, run.ID, i, marshalTuple(t)); err != nil {
			return 0, fmt.Errorf("write run: insert answer %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}
	return seq, nil
}
