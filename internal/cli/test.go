package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/catalog"
	"github.com/roach88/querycanvas/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the outcome of one scenario file.
type ScenarioResult struct {
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Query    string   `json:"query,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <catalog> <scenarios-dir>",
		Short: "Run gesture scenarios",
		Long: `Run scenario files against a relation catalog.

Each scenario applies its gestures to a fresh canvas with deterministic
ids (i1, i2, ... and c1, c2, ...), checks every step's expect clause and
the final assertions. When <scenarios-dir>/golden/<name>.golden exists,
the trace and final query must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  qcanvas test ./catalog ./scenarios
  qcanvas test ./catalog ./scenarios --filter "self_*"
  qcanvas test ./catalog ./scenarios --update
  qcanvas test ./catalog ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, catalogPath, scenariosDir string, cmd *cobra.Command) error {
	cat, cliErr := LoadCatalog(catalogPath)
	if cliErr != nil {
		return opts.formatter(cmd).failWith(ExitCommandError, cliErr.Code, cliErr.Message, cliErr.Details)
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 && opts.Format != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	r := &scenarioReporter{w: cmd.OutOrStdout(), quiet: opts.Format == "json"}
	for _, file := range files {
		sr := runScenario(file, cat, opts.Update, r)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles lists the .yaml/.yml files under dir, in lexical
// order. filter, if set, is matched against the file name without its
// extension. Golden directories are not scanned.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// scenarioReporter prints one line per scenario in text mode.
type scenarioReporter struct {
	w     io.Writer
	quiet bool
}

func (r *scenarioReporter) pass(sr ScenarioResult, note string) ScenarioResult {
	sr.Pass = true
	if !r.quiet {
		fmt.Fprintf(r.w, "✓ %s%s\n", sr.Name, note)
	}
	return sr
}

// fail records errs on sr. Lines are printed indented under the
// scenario; errs are what the JSON result carries.
func (r *scenarioReporter) fail(sr ScenarioResult, lines, errs []string) ScenarioResult {
	sr.Pass = false
	sr.Errors = errs
	if !r.quiet {
		fmt.Fprintf(r.w, "✗ %s\n", sr.Name)
		for _, l := range lines {
			fmt.Fprintf(r.w, "  %s\n", l)
		}
	}
	return sr
}

// runScenario loads and runs one scenario file against cat. The
// scenario's own catalog field is ignored in favour of cat.
func runScenario(file string, cat *catalog.Catalog, update bool, r *scenarioReporter) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file)}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(sr,
			[]string{fmt.Sprintf("Load error: %v", err)},
			[]string{fmt.Sprintf("failed to load scenario: %v", err)})
	}
	sr.Name = scenario.Name

	result, err := harness.Run(scenario, cat)
	if err != nil {
		return r.fail(sr,
			[]string{fmt.Sprintf("Execution error: %v", err)},
			[]string{fmt.Sprintf("execution failed: %v", err)})
	}
	sr.Query = result.Query
	sr.Warnings = result.Warnings

	goldenPath := goldenFilePath(file)
	if update {
		if err := writeGolden(goldenPath, scenario.Name, result); err != nil {
			return r.fail(sr,
				[]string{fmt.Sprintf("Golden update error: %v", err)},
				[]string{fmt.Sprintf("failed to update golden file: %v", err)})
		}
		return r.pass(sr, " (golden updated)")
	}

	if _, err := os.Stat(goldenPath); err == nil {
		match, err := matchesGolden(goldenPath, scenario.Name, result)
		if err != nil {
			return r.fail(sr,
				[]string{fmt.Sprintf("Golden comparison error: %v", err)},
				[]string{fmt.Sprintf("golden comparison failed: %v", err)})
		}
		if !match {
			return r.fail(sr,
				[]string{"Golden file mismatch (run with --update to regenerate)"},
				[]string{"trace does not match golden file"})
		}
	}

	if !result.Pass {
		return r.fail(sr, result.Errors, result.Errors)
	}
	return r.pass(sr, "")
}

// goldenFilePath returns <dir>/golden/<name>.golden for a scenario file.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path, name string, result *harness.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	data, err := harness.MarshalTrace(name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func matchesGolden(path, name string, result *harness.Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := harness.MarshalTrace(name, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal current trace: %w", err)
	}
	return bytes.Equal(want, got), nil
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
