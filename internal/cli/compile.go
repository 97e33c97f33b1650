package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/harness"
	"github.com/roach88/stratalog/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Config string // config file path
	Output string // output file path
}

// CompilationResult describes a compiled program.
type CompilationResult struct {
	Hash       string        `json:"hash"`
	Stratifier string        `json:"stratifier"`
	Facts      int           `json:"facts"`
	Rules      int           `json:"rules"`
	Strata     []StratumInfo `json:"strata"`
	Queries    []string      `json:"queries,omitempty"`
}

// StratumInfo lists the predicates a stratum derives and its rules in
// evaluation order.
type StratumInfo struct {
	Index      int      `json:"index"`
	Predicates []string `json:"predicates"`
	Rules      []string `json:"rules"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Check, optimise and stratify a program",
		Long: `Compile a CUE program: validate facts and rules, apply head equality
handling and the configured rule optimisers, check safety, and stratify
with the first configured strategy that succeeds.

The program is a .cue file or a directory holding one CUE package.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "config file (YAML)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}
	loaded, err := LoadProgram(path)
	if err != nil {
		return outputCompileErrors(formatter, splitErrors(err))
	}
	formatter.VerboseLog("Read %d CUE file(s) from %s", loaded.FileCount, path)

	src := loaded.Source
	program, err := compiler.Compile(src.Facts, src.Rules, cfg, compiler.WithLogger(slog.Default()))
	if err != nil {
		return outputCompileErrors(formatter, splitErrors(err))
	}

	result := describeProgram(program, src.Queries)
	if opts.Output != "" {
		if err := writeJSONFile(result, opts.Output); err != nil {
			return outputCompileErrors(formatter, []error{&LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)}})
		}
	}
	return outputCompileSuccess(formatter, result, opts.Output)
}

// describeProgram summarises a compiled program per stratum.
func describeProgram(p *compiler.Program, queries []ir.Query) *CompilationResult {
	result := &CompilationResult{
		Hash:       p.Hash,
		Stratifier: p.Stratifier,
		Facts:      p.Facts.Len(),
		Rules:      len(p.Rules),
		Strata:     make([]StratumInfo, len(p.Strata)),
	}
	for i, stratum := range p.Strata {
		info := StratumInfo{Index: i, Rules: make([]string, len(stratum))}
		seen := make(map[string]bool)
		for k, r := range stratum {
			info.Rules[k] = r.String()
			if name := r.HeadPredicate().String(); !seen[name] {
				seen[name] = true
				info.Predicates = append(info.Predicates, name)
			}
		}
		sort.Strings(info.Predicates)
		result.Strata[i] = info
	}
	for _, q := range queries {
		result.Queries = append(result.Queries, q.String())
	}
	return result
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d rule(s) over %d fact(s) into %d stratum/strata (%s)\n",
		result.Rules, result.Facts, len(result.Strata), result.Stratifier)
	fmt.Fprintf(w, "Program hash: %s\n\n", result.Hash)

	for _, s := range result.Strata {
		fmt.Fprintf(w, "Stratum %d: %v\n", s.Index, s.Predicates)
		for _, r := range s.Rules {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}
	if len(result.Queries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Queries:")
		for _, q := range result.Queries {
			fmt.Fprintf(w, "  %s\n", q)
		}
	}

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote compiled program to %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors outputs every compilation error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// splitErrors unpacks validation errors so each is reported on its own.
func splitErrors(err error) []error {
	var verrs compiler.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	out := make([]error, len(verrs))
	for i, e := range verrs {
		out[i] = e
	}
	return out
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return harness.ErrorCode(err), err.Error()
}

// writeJSONFile writes v as indented JSON.
func writeJSONFile(v any, filename string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
