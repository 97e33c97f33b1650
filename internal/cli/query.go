package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/engine"
	"github.com/roach88/stratalog/internal/harness"
	"github.com/roach88/stratalog/internal/ir"
	"github.com/roach88/stratalog/internal/kb"
	"github.com/roach88/stratalog/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Query    string
	Magic    bool
	Config   string
	Database string

	// IDGenerator overrides the run ID generator (for testing).
	// If nil, run IDs are UUIDv7.
	IDGenerator kb.IDGenerator
}

// QueryOutput is the outcome of one query.
type QueryOutput struct {
	Query     string   `json:"query"`
	Variables []string `json:"variables"`
	// Answers holds the query's literals instantiated with each solution.
	Answers   []string  `json:"answers"`
	Count     int       `json:"count"`
	Rewritten bool      `json:"rewritten"`
	RunID     string    `json:"run_id,omitempty"`
	Rounds    int       `json:"rounds"`
	Derived   uint64    `json:"derived"`
	Error     *CLIError `json:"error,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <program>",
		Short: "Answer queries over a program",
		Long: `Load a program into a knowledge base and answer queries over it.

Without --query the queries listed in the program are answered. Queries
are CUE expressions: one literal, or a list of literals for a conjunction.
With --db every query is recorded in the run log and can be replayed.

Exit codes:
  0 - All queries answered
  1 - A query failed (evaluation limit, unsafe query, ...)
  2 - Command error (program does not compile, bad config, etc.)

Examples:
  stratalog query ./graph.cue --query '{path: [1, "?Y"]}'
  stratalog query ./graph --query '[{path: ["?X", "?Y"]}, {not: {edge: ["?X", "?Y"]}}]'
  stratalog query ./graph --magic=false --config limits.yaml --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "query as a CUE expression")
	cmd.Flags().BoolVar(&opts.Magic, "magic", true, "answer bound queries through a magic-sets rewrite (overrides magic_sets)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "config file (YAML)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	if cmd.Flags().Changed("magic") {
		cfg.MagicSets = opts.Magic
	}

	loaded, err := LoadProgram(path)
	if err != nil {
		return outputCompileErrors(formatter, splitErrors(err))
	}
	src := loaded.Source

	queries := src.Queries
	if opts.Query != "" {
		q, err := compiler.ParseQuery(opts.Query)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, fmt.Sprintf("invalid --query: %v", err))
		}
		queries = []ir.Query{q}
	}
	if len(queries) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNoQuery, "no --query given and the program lists no queries")
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	kbOpts := []kb.Option{kb.WithLogger(slog.Default()), kb.WithLazyEvaluation()}
	if opts.IDGenerator != nil {
		kbOpts = append(kbOpts, kb.WithIDGenerator(opts.IDGenerator))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		kbOpts = append(kbOpts, kb.WithStore(st))
	}

	base, err := kb.New(src.Rules, cfg, kbOpts...)
	if err != nil {
		return outputCompileErrors(formatter, splitErrors(err))
	}
	defer base.Close()

	if err := base.AddFacts(ctx, src.Facts.Atoms()...); err != nil {
		return outputCompileErrors(formatter, splitErrors(err))
	}
	formatter.VerboseLog("Loaded %d fact(s) and %d rule(s) from %s", src.Facts.Len(), len(src.Rules), path)

	outputs := make([]QueryOutput, 0, len(queries))
	failed := 0
	for _, q := range queries {
		out := answerQuery(ctx, base, q)
		if out.Error != nil {
			failed++
		}
		outputs = append(outputs, out)
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: outputs}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_QUERY_FAILED", Message: fmt.Sprintf("%d of %d queries failed", failed, len(queries))}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		outputQueryText(formatter, outputs)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d queries failed", failed, len(queries)))
	}
	return nil
}

// answerQuery answers q and converts the answer or error for output.
func answerQuery(ctx context.Context, base *kb.KnowledgeBase, q ir.Query) QueryOutput {
	out := QueryOutput{Query: q.String(), Variables: []string{}, Answers: []string{}}
	for _, v := range q.Variables() {
		out.Variables = append(out.Variables, v.String())
	}

	ans, err := base.Query(ctx, q)
	if err != nil {
		out.Error = &CLIError{Code: harness.ErrorCode(err), Message: err.Error()}
		var ee *engine.EvalError
		if errors.As(err, &ee) {
			out.Error.Details = map[string]any{"stratum": ee.Stratum, "limit": ee.Limit, "observed": ee.Observed}
		}
		return out
	}
	for _, a := range ans.Instances() {
		out.Answers = append(out.Answers, a.String())
	}
	out.Count = ans.Len()
	out.Rewritten = ans.Rewritten
	out.RunID = ans.RunID
	out.Rounds = ans.Stats.Rounds
	out.Derived = ans.Stats.Derived
	return out
}

func outputQueryText(formatter *OutputFormatter, outputs []QueryOutput) {
	w := formatter.Writer
	for i, out := range outputs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, out.Query)
		if out.Error != nil {
			fmt.Fprintf(w, "  ✗ %s: %s\n", out.Error.Code, out.Error.Message)
			continue
		}
		if len(out.Answers) == 0 {
			fmt.Fprintln(w, "  no answers")
		}
		for _, a := range out.Answers {
			fmt.Fprintf(w, "  %s\n", a)
		}
		how := "full evaluation"
		if out.Rewritten {
			how = "magic sets"
		}
		fmt.Fprintf(w, "  (%d answer(s), %s, %d round(s)", out.Count, how, out.Rounds)
		if out.RunID != "" {
			fmt.Fprintf(w, ", run %s", out.RunID)
		}
		fmt.Fprintln(w, ")")
	}
}
