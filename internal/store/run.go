package store

import (
	"time"

	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunOK    RunStatus = "ok"
	RunError RunStatus = "error"
)

// Run records one evaluated query.
type Run struct {
	// Seq is assigned by the store on write.
	Seq         int64
	ID          string
	ProgramHash string
	Query       ir.Query
	Config      config.Config
	Status      RunStatus
	// ErrorCode is the engine.EvalErrorCode of a failed run, or "" for
	// failures outside the evaluator.
	ErrorCode    string
	ErrorMessage string
	Evaluator    string
	Rewritten    bool
	Rounds       int
	Derived      uint64
	Variables    []ir.Variable
	AnswerHash   string
	// Answers holds the answer tuples in sorted order. ListRuns leaves it nil.
	Answers   []ir.Tuple
	StartedAt time.Time
	Duration  time.Duration
}
