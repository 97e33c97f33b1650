package kb

import (
	"context"
	"fmt"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/store"
)

// ReplayResult compares a recorded run with a fresh evaluation of the same
// program, query and config.
type ReplayResult struct {
	RunID string
	// Answer is nil when the replay failed.
	Answer *engine.Answer
	Err    error
	// Match is true when the replay reproduced the recorded answer hash, or
	// the recorded error code.
	Match bool
}

// Replay re-runs a recorded query from scratch.
func Replay(ctx context.Context, in store.ReplayInput, eng *engine.Engine) ReplayResult {
	res := ReplayResult{RunID: in.Run.ID}
	if eng == nil {
		eng = engine.New()
	}

	program, err := compiler.Compile(in.Facts, in.Rules, in.Config, compiler.WithBuiltins(builtin.Default()))
	if err != nil {
		res.Err = fmt.Errorf("compile recorded program %s: %w", in.Run.ProgramHash, err)
		return res
	}

	ans, err := eng.Query(ctx, program, in.Query, in.Config)
	if err != nil {
		res.Err = err
		res.Match = in.Matches("", string(engine.Code(err)))
		return res
	}
	res.Answer = ans
	res.Match = in.Matches(ans.Hash(), "")
	return res
}
