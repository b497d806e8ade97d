package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/catalog"
	"github.com/roach88/querycanvas/internal/engine"
	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
}

// ReplayDesignResult holds the replay result for a single design.
type ReplayDesignResult struct {
	Design       string `json:"design"`
	Gestures     int    `json:"gestures"`
	SavedHash    string `json:"saved_hash"`
	ReplayedHash string `json:"replayed_hash,omitempty"`
	Reproduced   bool   `json:"reproduced"`
	Problem      string `json:"problem,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Designs       []ReplayDesignResult `json:"designs"`
	TotalDesigns  int                  `json:"total_designs"`
	AllReproduced bool                 `json:"all_reproduced"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <catalog> [design]",
		Short: "Replay gesture journals and verify the saved designs",
		Long: `Replay each saved design's gesture journal against a catalog.

Every gesture must reproduce its recorded result, and the replayed canvas
must hash to the saved design. A journal that no longer replays usually
means the catalog changed under the design.

Designs saved without a journal are skipped.

Exit codes:
  0 - All designs reproduced
  1 - A journal diverged or its canvas differs from the saved design
  2 - Command error (no store, unreadable catalog, etc.)

Examples:
  qcanvas replay ./catalog --db ./canvas.db
  qcanvas replay ./catalog orders_by_user --db ./canvas.db
  qcanvas replay ./catalog --db ./canvas.db --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			design := ""
			if len(args) == 2 {
				design = args[1]
			}
			return runReplay(opts, args[0], design, cmd)
		},
	}

	return cmd
}

func runReplay(opts *ReplayOptions, catalogPath, design string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	cat, cliErr := LoadCatalog(catalogPath)
	if cliErr != nil {
		return formatter.failWith(ExitCommandError, cliErr.Code, cliErr.Message, cliErr.Details)
	}

	st, err := opts.requireStore()
	if err != nil {
		return err
	}
	defer st.Close()

	designs, err := st.ListDesigns(ctx)
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	if design != "" {
		designs = filterDesigns(designs, design)
		if len(designs) == 0 {
			return formatter.failWith(ExitCommandError, ErrCodeNoDesign, fmt.Sprintf("no design named %q", design), nil)
		}
	}

	result := ReplayResult{
		Designs:       make([]ReplayDesignResult, 0, len(designs)),
		AllReproduced: true,
	}

	for _, info := range designs {
		designResult, skip, err := replayDesign(ctx, st, cat, info)
		if err != nil {
			return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("replay %s: %v", info.Name, err), nil)
		}
		if skip {
			formatter.VerboseLog("Skipping %s: no journal", info.Name)
			continue
		}

		result.Designs = append(result.Designs, designResult)
		if !designResult.Reproduced {
			result.AllReproduced = false
		}
	}
	result.TotalDesigns = len(result.Designs)

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

func filterDesigns(designs []store.DesignInfo, name string) []store.DesignInfo {
	for _, d := range designs {
		if d.Name == name {
			return []store.DesignInfo{d}
		}
	}
	return nil
}

// replayDesign replays one design's journal. skip is true when the
// design has no journal. A divergence is reported in the result, not as
// an error; err is reserved for store failures.
func replayDesign(ctx context.Context, st *store.Store, cat *catalog.Catalog, info store.DesignInfo) (result ReplayDesignResult, skip bool, err error) {
	journal, err := st.ReadJournal(ctx, info.Name)
	if err != nil {
		return ReplayDesignResult{}, false, err
	}
	if len(journal) == 0 {
		return ReplayDesignResult{}, true, nil
	}

	result = ReplayDesignResult{
		Design:    info.Name,
		Gestures:  len(journal),
		SavedHash: info.Hash,
	}

	e, err := engine.Replay(ctx, cat, journal)
	if err != nil {
		if engine.IsReplayDiverged(err) {
			result.Problem = err.Error()
			return result, false, nil
		}
		return ReplayDesignResult{}, false, err
	}

	hash, err := ir.DesignHash(e.Snapshot(info.Name))
	if err != nil {
		return ReplayDesignResult{}, false, err
	}
	result.ReplayedHash = hash
	result.Reproduced = hash == info.Hash
	if !result.Reproduced {
		result.Problem = "replayed canvas differs from the saved design"
	}
	return result, false, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllReproduced {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDiverged,
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllReproduced {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalDesigns == 0 {
		fmt.Fprintln(w, "No journaled designs found in store.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d design(s)\n", result.TotalDesigns)
	fmt.Fprintln(w)

	for _, d := range result.Designs {
		status := "✓"
		if !d.Reproduced {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Design: %s\n", status, d.Design)
		fmt.Fprintf(w, "  Gestures: %d\n", d.Gestures)
		if verbose {
			fmt.Fprintf(w, "  Saved:    %s\n", d.SavedHash)
			if d.ReplayedHash != "" {
				fmt.Fprintf(w, "  Replayed: %s\n", d.ReplayedHash)
			}
		}
		if d.Problem != "" {
			fmt.Fprintf(w, "  Problem: %s\n", d.Problem)
		}
		fmt.Fprintln(w)
	}

	if result.AllReproduced {
		fmt.Fprintln(w, "✓ All designs reproduced")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
