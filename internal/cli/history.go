package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryResult lists a design's recorded compilations, oldest first.
type HistoryResult struct {
	Design       string              `json:"design"`
	Compilations []store.Compilation `json:"compilations"`
}

func (r *HistoryResult) renderText(w io.Writer) error {
	if len(r.Compilations) == 0 {
		fmt.Fprintf(w, "No compilations recorded for %s.\n", r.Design)
		return nil
	}
	for i, c := range r.Compilations {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "-- #%d  %s  dialect=%s\n", c.Seq, shortHash(c.DesignHash), c.Dialect)
		fmt.Fprintln(w, strings.TrimRight(c.Query, "\n"))
	}
	return nil
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <design>",
		Short: "Show a design's compile history",
		Long: `Show the queries recorded for a design by compile --db.

Examples:
  qcanvas history orders_by_user --db ./canvas.db
  qcanvas history orders_by_user --db ./canvas.db --limit 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the last n compilations (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := opts.requireStore()
	if err != nil {
		return err
	}
	defer st.Close()

	compilations, err := st.ReadHistory(ctx, name, opts.Limit)
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	return formatter.Success(&HistoryResult{Design: name, Compilations: compilations})
}
