package store

import (
	"context"
	"fmt"

	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// ReplayInput is everything needed to evaluate a recorded run again.
type ReplayInput struct {
	Run    Run
	Facts  ir.Facts
	Rules  []ir.Rule
	Query  ir.Query
	Config config.Config
}

// GetReplayInput loads a run together with the program it was evaluated over.
func (s *Store) GetReplayInput(ctx context.Context, runID string) (ReplayInput, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return ReplayInput{}, fmt.Errorf("get replay input: %w", err)
	}
	facts, rules, err := s.ReadProgram(ctx, run.ProgramHash)
	if err != nil {
		return ReplayInput{}, fmt.Errorf("get replay input: %w", err)
	}
	return ReplayInput{
		Run:    run,
		Facts:  facts,
		Rules:  rules,
		Query:  run.Query,
		Config: run.Config,
	}, nil
}

// Matches reports whether a new answer hash and error code reproduce the run.
func (in ReplayInput) Matches(answerHash, errorCode string) bool {
	if in.Run.Status == RunError {
		return errorCode == in.Run.ErrorCode && answerHash == ""
	}
	return errorCode == "" && answerHash == in.Run.AnswerHash
}
