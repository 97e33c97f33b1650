package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/stratalog/internal/builtin"
	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Report every problem in a program",
		Long: `Validate a CUE program and report all problems found instead of
stopping at the first: malformed facts, invalid rules, unsafe rules,
head equalities and recursion through negation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "config file (YAML)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return outputValidationErrors(formatter, []compiler.ValidationError{loadValidationError(err)})
	}

	loaded, err := LoadProgram(path)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs)
		}
		return outputValidationErrors(formatter, []compiler.ValidationError{loadValidationError(err)})
	}
	formatter.VerboseLog("Read %d CUE file(s) from %s", loaded.FileCount, path)

	src := loaded.Source
	reg := builtin.Default()
	errs := compiler.ValidateRules(src.Rules, reg)
	for i, q := range src.Queries {
		for _, e := range compiler.ValidateQuery(q) {
			e.Field = fmt.Sprintf("queries[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}

	// Safety and stratification only make sense on well-formed rules.
	if len(errs) == 0 {
		formatter.VerboseLog("Checking safety and stratification of %d rule(s)", len(src.Rules))
		if _, err := compiler.Compile(src.Facts, src.Rules, cfg, compiler.WithBuiltins(reg), compiler.WithLogger(slog.Default())); err != nil {
			errs = append(errs, compiler.ValidationError{
				Field:   "program",
				Message: err.Error(),
				Code:    harness.ErrorCode(err),
			})
		}
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter)
}

// loadValidationError reports a load failure as a validation error.
func loadValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		line := 0
		if loadErr.Pos.IsValid() {
			line = loadErr.Pos.Line()
		}
		return compiler.ValidationError{Field: "load", Message: loadErr.Message, Code: loadErr.Code, Line: line}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ Program is valid")
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: fmt.Sprintf("validation failed with %d error(s)", len(errs)),
			},
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "✗ Validation failed with %d error(s)\n\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
