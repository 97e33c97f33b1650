package harness

// QueryTrace records one scenario query and what evaluating it produced.
type QueryTrace struct {
	Query string `json:"query"`
	// Answers holds the query's positive literals instantiated with each
	// solution, sorted.
	Answers    []string `json:"answers"`
	Count      int      `json:"count"`
	Rewritten  bool     `json:"rewritten"`
	AnswerHash string   `json:"answer_hash,omitempty"`
	// Error is the error code when the query failed.
	Error string `json:"error,omitempty"`
	RunID string `json:"run_id,omitempty"`
	Stats Stats  `json:"stats"`
}

// Stats describes the evaluation that answered a query.
type Stats struct {
	Rounds  int    `json:"rounds"`
	Derived uint64 `json:"derived"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// CompileError is the error code when the program did not compile.
	CompileError string `json:"compile_error,omitempty"`
	Stratifier   string `json:"stratifier,omitempty"`
	Strata       int    `json:"strata"`

	Queries []QueryTrace `json:"queries"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Queries:  []QueryTrace{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
