package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/store"
)

// DesignsOptions holds flags for the designs command.
type DesignsOptions struct {
	*RootOptions
	Delete string // design to delete instead of listing
}

// DesignListing is the result of listing saved designs.
type DesignListing struct {
	Designs []store.DesignInfo `json:"designs"`
}

func (l *DesignListing) renderText(w io.Writer) error {
	if len(l.Designs) == 0 {
		fmt.Fprintln(w, "No designs saved.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREV\tINSTANCES\tCONNECTIONS\tHASH")
	for _, d := range l.Designs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", d.Name, d.Revision, d.InstanceCount, d.ConnectionCount, shortHash(d.Hash))
	}
	return tw.Flush()
}

// DesignDeleted is the result of deleting one design.
type DesignDeleted struct {
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

func (d *DesignDeleted) renderText(w io.Writer) error {
	fmt.Fprintf(w, "✓ Deleted %s with its journal and history\n", d.Name)
	return nil
}

// NewDesignsCommand creates the designs command.
func NewDesignsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DesignsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "designs",
		Short: "List saved designs",
		Long: `List the designs saved in the store, or delete one.

Examples:
  qcanvas designs --db ./canvas.db
  qcanvas designs --db ./canvas.db --delete orders_by_user`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesigns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete a design with its journal and history")

	return cmd
}

func runDesigns(opts *DesignsOptions, cmd *cobra.Command) error {
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

	if opts.Delete != "" {
		ok, err := st.DeleteDesign(ctx, opts.Delete)
		if err != nil {
			return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
		}
		if !ok {
			return formatter.failWith(ExitCommandError, ErrCodeNoDesign, fmt.Sprintf("no design named %q", opts.Delete), nil)
		}
		return formatter.Success(&DesignDeleted{Name: opts.Delete, Deleted: true})
	}

	designs, err := st.ListDesigns(ctx)
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	return formatter.Success(&DesignListing{Designs: designs})
}
