package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/ir"
)

// CatalogListing is the output of the catalog command.
type CatalogListing struct {
	Relations []*ir.RelationDefinition `json:"relations"`
}

func (l *CatalogListing) renderText(w io.Writer) error {
	for i, rel := range l.Relations {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := rel.ID
		if rel.Name != rel.ID {
			header += " (" + rel.Name + ")"
		}
		if rel.Description != "" {
			header += " - " + rel.Description
		}
		fmt.Fprintln(w, header)

		width := 0
		for _, col := range rel.Columns {
			width = max(width, len(col.Name))
		}
		for _, col := range rel.Columns {
			line := fmt.Sprintf("  %-*s  %s", width, col.Name, col.Type)
			if col.IsPrimaryKey {
				line += "  PK"
			}
			fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
	}
	return nil
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog <catalog>",
		Short: "List the relations of a catalog",
		Long: `Load a relation catalog and list its relations and columns in
declaration order.

The catalog is a directory of CUE files, a single .cue file, or a YAML
catalog.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCatalog(opts *RootOptions, catalogPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cat, cliErr := LoadCatalog(catalogPath)
	if cliErr != nil {
		return formatter.failWith(ExitCommandError, cliErr.Code, cliErr.Message, cliErr.Details)
	}
	formatter.VerboseLog("Loaded %d relation(s) from %s", cat.Len(), catalogPath)

	return formatter.Success(&CatalogListing{Relations: cat.List()})
}
