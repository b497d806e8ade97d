package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/queryir"
	"github.com/roach88/querycanvas/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string        // output file path
	Watch    bool          // recompile on change
	Debounce time.Duration // quiet period before a watch recompile
}

// CompileResult is the outcome of compiling one design file.
type CompileResult struct {
	Design   string   `json:"design"`
	Hash     string   `json:"hash"`
	Dialect  string   `json:"dialect"`
	Query    string   `json:"query"`
	Portable bool     `json:"portable"`
	Warnings []string `json:"warnings"`
	Cached   bool     `json:"cached,omitempty"`
	Output   string   `json:"output,omitempty"`
}

// renderText prints the query, then warnings as SQL comments so the
// output stays pasteable.
func (r *CompileResult) renderText(w io.Writer) error {
	fmt.Fprintln(w, r.Query)
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "-- warning: %s\n", warning)
	}
	if r.Output != "" {
		fmt.Fprintf(w, "-- wrote query to %s\n", r.Output)
	}
	return nil
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <catalog> <design.yaml>",
		Short: "Compile a design file to SQL",
		Long: `Compile a design file against a relation catalog and print the query.

The catalog is a directory of CUE files, a single .cue file, or a YAML
catalog. Portability warnings are appended as SQL comments.

With --db, each compile is recorded in the design's history; an identical
design already compiled under the same name is not recorded twice.

With --watch, the design file is recompiled whenever it changes.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return runCompileWatch(cmd.Context(), opts, args[0], args[1], cmd)
			}
			return runCompile(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the query to a file")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "recompile when the design file changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 200*time.Millisecond, "quiet period before recompiling in watch mode")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, catalogPath, designPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	result, cliErr := compileDesign(opts.RootOptions, catalogPath, designPath)
	if cliErr != nil {
		return formatter.failWith(ExitCommandError, cliErr.Code, cliErr.Message, cliErr.Details)
	}
	formatter.VerboseLog("Compiled %s (%s)", result.Design, result.Hash)

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.Query+"\n"), 0644); err != nil {
			return formatter.failWith(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		result.Output = opts.Output
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		if err := recordCompilation(ctx, st, result); err != nil {
			return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
		}
	}

	return formatter.Success(result)
}

// compileDesign loads, restores and compiles one design file.
func compileDesign(opts *RootOptions, catalogPath, designPath string) (*CompileResult, *CLIError) {
	cat, cliErr := LoadCatalog(catalogPath)
	if cliErr != nil {
		return nil, cliErr
	}
	design, cliErr := LoadDesignFile(designPath, cat)
	if cliErr != nil {
		return nil, cliErr
	}
	if design.Name == "" {
		design.Name = designNameFromPath(designPath)
	}

	compiler, err := opts.compiler()
	if err != nil {
		return nil, &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	b, err := canvas.Restore(design, cat, canvas.WithCompiler(compiler))
	if err != nil {
		return nil, restoreError(err)
	}

	snapshot := b.Snapshot(design.Name)
	hash, err := ir.DesignHash(snapshot)
	if err != nil {
		return nil, &CLIError{Code: ErrCodeGeneric, Message: fmt.Sprintf("hash design: %v", err)}
	}

	result := &CompileResult{
		Design:   design.Name,
		Hash:     hash,
		Dialect:  opts.dialect(),
		Query:    b.RequestCompile(),
		Portable: true,
		Warnings: []string{},
	}
	if sel, ok := compiler.Build(snapshot.Instances, snapshot.Connections, cat); ok {
		v := queryir.Validate(sel)
		result.Portable = v.IsPortable
		result.Warnings = v.Warnings
	}
	return result, nil
}

// recordCompilation appends result to its design's history unless the
// latest identical compile is already recorded under the same name.
func recordCompilation(ctx context.Context, st *store.Store, result *CompileResult) error {
	prev, ok, err := st.FindCompilation(ctx, result.Hash, result.Dialect)
	if err != nil {
		return err
	}
	if ok && prev.DesignName == result.Design && prev.Query == result.Query {
		result.Cached = true
		return nil
	}
	_, err = st.RecordCompilation(ctx, result.Design, result.Hash, result.Dialect, result.Query)
	return err
}

func designNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
