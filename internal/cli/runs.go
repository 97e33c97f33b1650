package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database  string
	Limit     int
	Status    string
	ErrorCode string
	Program   string
	Query     string
}

// RunSummary is one recorded run as listed by the runs command.
type RunSummary struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	Status      string `json:"status"`
	Query       string `json:"query"`
	ProgramHash string `json:"program_hash"`
	ErrorCode   string `json:"error_code,omitempty"`
	Evaluator   string `json:"evaluator,omitempty"`
	Rewritten   bool   `json:"rewritten"`
	Rounds      int    `json:"rounds"`
	Derived     uint64 `json:"derived"`
	AnswerHash  string `json:"answer_hash,omitempty"`
	StartedAt   string `json:"started_at"`
	DurationMS  int64  `json:"duration_ms"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a run log, oldest first.

Examples:
  stratalog runs --db ./runs.db
  stratalog runs --db ./runs.db --limit 10 --format json
  stratalog runs --db ./runs.db --status error --error-code TIMEOUT
  stratalog runs --db ./runs.db --query '{path: [1, "?Y"]}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list at most this many runs (0 = all)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (ok or error)")
	cmd.Flags().StringVar(&opts.ErrorCode, "error-code", "", "only failed runs with this error code")
	cmd.Flags().StringVar(&opts.Program, "program", "", "only runs of the program with this hash")
	cmd.Flags().StringVar(&opts.Query, "query", "", "only runs of this query, up to variable renaming")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	filter, err := opts.filter()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.FindRuns(cmd.Context(), filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = summarizeRun(r)
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, s := range summaries {
		outcome := s.AnswerHash
		if s.Status == string(store.RunError) {
			outcome = "error " + s.ErrorCode
		}
		fmt.Fprintf(w, "%4d  %s  %-5s  %s  %s\n", s.Seq, s.ID, s.Status, s.Query, outcome)
	}
	fmt.Fprintf(w, "\n%d run(s)\n", len(summaries))
	return nil
}

func (o *RunsOptions) filter() (store.RunFilter, error) {
	f := store.RunFilter{
		ErrorCode:   o.ErrorCode,
		ProgramHash: o.Program,
		Limit:       o.Limit,
	}
	if o.Limit < 0 {
		return f, fmt.Errorf("--limit must be non-negative, got %d", o.Limit)
	}
	switch store.RunStatus(o.Status) {
	case "", store.RunOK, store.RunError:
		f.Status = store.RunStatus(o.Status)
	default:
		return f, fmt.Errorf("--status must be %q or %q, got %q", store.RunOK, store.RunError, o.Status)
	}
	if o.Query != "" {
		q, err := compiler.ParseQuery(o.Query)
		if err != nil {
			return f, fmt.Errorf("invalid --query: %w", err)
		}
		f.Query = &q
	}
	return f, nil
}

func summarizeRun(r store.Run) RunSummary {
	return RunSummary{
		Seq:         r.Seq,
		ID:          r.ID,
		Status:      string(r.Status),
		Query:       r.Query.String(),
		ProgramHash: r.ProgramHash,
		ErrorCode:   r.ErrorCode,
		Evaluator:   r.Evaluator,
		Rewritten:   r.Rewritten,
		Rounds:      r.Rounds,
		Derived:     r.Derived,
		AnswerHash:  r.AnswerHash,
		StartedAt:   r.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMS:  r.Duration.Milliseconds(),
	}
}
