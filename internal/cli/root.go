package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/querysql"
	"github.com/roach88/querycanvas/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string // SQLite store path; empty disables persistence
	Dialect string // identifier quoting
	Alias   string // self-join alias mode
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// EnvDB names the environment variable that supplies the default --db.
const EnvDB = "QCANVAS_DB"

// NewRootCommand creates the root command for the qcanvas CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qcanvas",
		Short: "qcanvas - visual join builder",
		Long: `Place relations on a canvas, connect their columns, and read back the SQL.

Designs are compiled to SELECT ... FROM ... JOIN queries whose join order
is the order the connections were drawn in.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := opts.compiler(); err != nil {
				return err
			}
			installLogger(cmd, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", os.Getenv(EnvDB), "path to SQLite design store (default $"+EnvDB+")")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", string(querysql.DialectPlain), "identifier quoting (plain|ansi|mysql|mssql)")
	cmd.PersistentFlags().StringVar(&opts.Alias, "alias", string(querysql.AliasAuto), "table aliases (auto|always|never)")

	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewDesignsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// installLogger routes slog to stderr. --verbose shows engine debug logs.
func installLogger(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// compiler builds the SQL compiler selected by --dialect and --alias.
func (o *RootOptions) compiler() (*querysql.SQLCompiler, error) {
	dialect, err := querysql.ParseDialect(o.Dialect)
	if err != nil {
		return nil, err
	}
	alias, err := querysql.ParseAliasMode(o.Alias)
	if err != nil {
		return nil, err
	}
	return querysql.NewSQLCompiler(querysql.WithDialect(dialect), querysql.WithAliasMode(alias)), nil
}

// dialect returns the normalized --dialect value.
func (o *RootOptions) dialect() string {
	d, err := querysql.ParseDialect(o.Dialect)
	if err != nil {
		return o.Dialect
	}
	return string(d)
}

// openStore opens the store named by --db. It returns nil, nil when no
// store is configured.
func (o *RootOptions) openStore() (*store.Store, error) {
	if o.DB == "" {
		return nil, nil
	}
	st, err := store.Open(o.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open store %s", ErrCodeStoreFailed, o.DB), err)
	}
	return st, nil
}

// requireStore is openStore for commands that cannot run without a store.
func (o *RootOptions) requireStore() (*store.Store, error) {
	if o.DB == "" {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: no store configured (pass --db or set %s)", ErrCodeNoStore, EnvDB))
	}
	return o.openStore()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
