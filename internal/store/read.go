package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stratalog/internal/ir"
)

// ErrNotFound is returned when a run or program does not exist.
var ErrNotFound = errors.New("not found")

const runColumns = `
	seq, id, program_hash, query, config, status, error_code, error_message,
	evaluator, rewritten, rounds, derived, variables, answer_hash, started_at, duration_us`

// ReadRun returns a run with its answer tuples.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}

	answers, err := s.readAnswers(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Answers = answers
	return run, nil
}

// ListRuns returns up to limit runs without their answers, oldest first.
// A limit of 0 returns every run.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.FindRuns(ctx, RunFilter{Limit: limit})
}

// ReadProgram returns the facts and rules stored under hash.
func (s *Store) ReadProgram(ctx context.Context, hash string) (ir.Facts, []ir.Rule, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM programs WHERE hash = ?`, hash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("program %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read program %s: %w", hash, err)
	}
	facts, rules, err := ir.UnmarshalProgram([]byte(body))
	if err != nil {
		return nil, nil, fmt.Errorf("decode program %s: %w", hash, err)
	}
	return facts, rules, nil
}

func (s *Store) readAnswers(ctx context.Context, runID string) ([]ir.Tuple, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tuple FROM answers WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := []ir.Tuple{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		t, err := unmarshalTuple(data)
		if err != nil {
			return nil, err
		}
		answers = append(answers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		queryData  string
		cfgText    string
		status     string
		rewritten  int
		derived    int64
		varsJSON   string
		startedAt  string
		durationUS int64
	)
	err := sc.Scan(
		&run.Seq, &run.ID, &run.ProgramHash, &queryData, &cfgText, &status,
		&run.ErrorCode, &run.ErrorMessage, &run.Evaluator, &rewritten,
		&run.Rounds, &derived, &varsJSON, &run.AnswerHash, &startedAt, &durationUS,
	)
	if err != nil {
		return Run{}, err
	}

	if run.Query, err = ir.UnmarshalQuery([]byte(queryData)); err != nil {
		return Run{}, fmt.Errorf("decode query of run %s: %w", run.ID, err)
	}
	if run.Config, err = unmarshalConfig(cfgText); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.Variables, err = unmarshalVariables(varsJSON); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Status = RunStatus(status)
	run.Rewritten = rewritten != 0
	run.Derived = uint64(derived)
	run.Duration = time.Duration(durationUS) * time.Microsecond
	return run, nil
}
