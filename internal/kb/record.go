package kb

import (
	"context"
	"time"

	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/ir"
	"github.com/roach88/stratalog/internal/store"
)

// record writes one query to the run log. Failures are logged, never
// returned: the answer stands whether or not it was recorded.
func (kb *KnowledgeBase) record(ctx context.Context, q ir.Query, ans *engine.Answer, qerr error, start time.Time) {
	if kb.store == nil {
		return
	}
	hash, err := kb.store.WriteProgram(ctx, kb.facts, kb.rules)
	if err != nil {
		kb.logger.Warn("recording program failed", "error", err)
		return
	}

	run := store.Run{
		ID:          kb.ids.Generate(),
		ProgramHash: hash,
		Query:       q,
		Config:      kb.cfg,
		StartedAt:   start,
		Duration:    kb.clock.Now().Sub(start),
	}
	if qerr != nil {
		run.Status = store.RunError
		run.ErrorCode = string(engine.Code(qerr))
		run.ErrorMessage = qerr.Error()
	} else {
		run.Status = store.RunOK
		run.Evaluator = ans.Stats.Evaluator
		run.Rewritten = ans.Rewritten
		run.Rounds = ans.Stats.Rounds
		run.Derived = ans.Stats.Derived
		run.Variables = ans.Variables
		run.AnswerHash = ans.Hash()
		run.Answers = ans.Bindings.Sorted()
	}

	if _, err := kb.store.WriteRun(ctx, run); err != nil {
		kb.logger.Warn("recording run failed", "run", run.ID, "error", err)
		return
	}
	if ans != nil {
		ans.RunID = run.ID
	}
	kb.logger.Debug("run recorded", "run", run.ID, "status", run.Status)
}
