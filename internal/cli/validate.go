package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat portability warnings as failures
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool       `json:"valid"`
	Portable bool       `json:"portable"`
	Errors   []CLIError `json:"errors,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <catalog> <design.yaml>",
		Short: "Check a design without printing its query",
		Long: `Check a design file against a catalog.

A design is valid when every instance names a catalog relation, every
connection joins two different placed instances on columns their
relations define, and no id is used twice. Portability warnings
(RIGHT/FULL joins, disconnected instances, repeated joins) are reported
but only fail validation with --strict.

Exit codes:
  0 - Design valid
  1 - Design invalid (or not portable with --strict)
  2 - Command error (catalog or design file unreadable)`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on portability warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, catalogPath, designPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	compiled, cliErr := compileDesign(opts.RootOptions, catalogPath, designPath)
	if cliErr != nil {
		switch cliErr.Code {
		case ErrCodeDesignShape, ErrCodeDesignState:
			return outputValidationErrors(formatter, []CLIError{*cliErr})
		default:
			return formatter.failWith(ExitCommandError, cliErr.Code, cliErr.Message, cliErr.Details)
		}
	}

	formatter.VerboseLog("Design %s: %d warning(s)", compiled.Design, len(compiled.Warnings))

	result := ValidationResult{
		Valid:    true,
		Portable: compiled.Portable,
		Warnings: compiled.Warnings,
	}
	if opts.Strict && !compiled.Portable {
		result.Valid = false
	}
	return outputValidateResult(formatter, result)
}

// outputValidateResult outputs the result of a design that restored
// cleanly.
func outputValidateResult(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		return outputValidateJSONFailure(formatter, result, &CLIError{
			Code:    ErrCodeDesignState,
			Message: fmt.Sprintf("design is not portable: %d warning(s)", len(result.Warnings)),
		})
	}

	w := formatter.Writer
	switch {
	case !result.Valid:
		fmt.Fprintln(w, "✗ Design is not portable")
	case len(result.Warnings) == 0:
		fmt.Fprintln(w, "✓ Design valid")
	default:
		fmt.Fprintf(w, "✓ Design valid with %d warning(s)\n", len(result.Warnings))
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("design is not portable: %d warning(s)", len(result.Warnings)))
	}
	return nil
}

// outputValidationErrors outputs a design that failed validation.
func outputValidationErrors(formatter *OutputFormatter, errs []CLIError) error {
	if formatter.Format == "json" {
		return outputValidateJSONFailure(formatter, ValidationResult{Valid: false, Errors: errs}, &errs[0])
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", err.Code, err.Message)
		if formatter.Verbose && err.Details != nil {
			fmt.Fprintf(formatter.Writer, "  Details: %v\n", err.Details)
		}
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func outputValidateJSONFailure(formatter *OutputFormatter, result ValidationResult, first *CLIError) error {
	response := CLIResponse{
		Status: "error",
		Data:   result,
		Error:  first,
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", first.Code, first.Message))
}
