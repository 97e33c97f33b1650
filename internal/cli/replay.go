package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/harness"
	"github.com/roach88/stratalog/internal/kb"
	"github.com/roach88/stratalog/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID string `json:"run_id"`
	Query string `json:"query"`
	// Recorded and Replayed are the answer hash of a successful run or the
	// error code of a failed one.
	Recorded      string `json:"recorded"`
	Replayed      string `json:"replayed"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id...]",
		Short: "Re-evaluate recorded runs and verify determinism",
		Long: `Replay recorded runs: recompile each run's program under its recorded
config, answer its query again, and compare the answer hash (or error
code) with the recorded one. Without run IDs every run is replayed.

Exit codes:
  0 - All runs replayed identically
  1 - A replay diverged from its recording
  2 - Command error (database not found, unknown run, etc.)

Examples:
  stratalog replay --db ./runs.db
  stratalog replay --db ./runs.db 0192f1d4-...
  stratalog replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, ids []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if len(ids) == 0 {
		runs, err := st.ListRuns(ctx, 0)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(ids)),
		TotalRuns:        len(ids),
		AllDeterministic: true,
	}
	eng := engine.New(engine.WithLogger(slog.Default()))
	for _, id := range ids {
		in, err := st.GetReplayInput(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error())
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}

		formatter.VerboseLog("Replaying run %s: %s", id, in.Query)
		rr := kb.Replay(ctx, in, eng)
		run := ReplayRunResult{
			RunID:         id,
			Query:         in.Query.String(),
			Recorded:      in.Run.AnswerHash,
			Deterministic: rr.Match,
		}
		if in.Run.Status == store.RunError {
			run.Recorded = in.Run.ErrorCode
		}
		if rr.Answer != nil {
			run.Replayed = rr.Answer.Hash()
		} else {
			run.Replayed = harness.ErrorCode(rr.Err)
			if code := engine.Code(rr.Err); code != "" {
				run.Replayed = string(code)
			}
		}
		if !rr.Match {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, run)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged from the recorded runs")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}
	for _, r := range result.Runs {
		mark := "✓"
		if !r.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s\n", mark, r.RunID, r.Query)
		if !r.Deterministic {
			fmt.Fprintf(w, "  recorded %s, replayed %s\n", r.Recorded, r.Replayed)
		}
	}
	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "✓ All %d run(s) replayed identically\n", result.TotalRuns)
		return
	}
	fmt.Fprintln(w, "✗ Replay diverged")
}
