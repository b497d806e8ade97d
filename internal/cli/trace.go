package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querycanvas/internal/engine"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Kind string // optional - filter to one gesture kind
}

// TraceEntry is one journaled gesture in the trace timeline.
type TraceEntry struct {
	Seq        int64          `json:"seq"`
	Kind       string         `json:"kind"`
	Args       map[string]any `json:"args,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Connection string         `json:"connection,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Design   string       `json:"design"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalGestures int `json:"total_gestures"`
	Rejected      int `json:"rejected"`
	Placed        int `json:"placed"`
	Connected     int `json:"connected"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <design>",
		Short: "Show the gesture journal of a saved design",
		Long: `Show every gesture recorded for a design, in the order it was applied.

Rejected gestures are part of the journal: a click on a missing column is
shown with its error code.

Examples:
  qcanvas trace orders_by_user --db ./canvas.db
  qcanvas trace orders_by_user --db ./canvas.db --kind activate
  qcanvas trace orders_by_user --db ./canvas.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one gesture kind (place, activate, set_kind, ...)")

	return cmd
}

func runTrace(opts *TraceOptions, name string, cmd *cobra.Command) error {
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

	journal, err := st.ReadJournal(ctx, name)
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	if len(journal) == 0 {
		return formatter.failWith(ExitCommandError, ErrCodeNoDesign, fmt.Sprintf("no journal for design %q", name), nil)
	}

	timeline, err := buildTimeline(journal, opts.Kind)
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}

	result := TraceResult{
		Design:   name,
		Timeline: timeline,
		Stats:    traceStats(journal),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline converts journal entries to timeline entries, keeping
// only gestures of kindFilter when it is set.
func buildTimeline(journal []engine.JournalEntry, kindFilter string) ([]TraceEntry, error) {
	timeline := make([]TraceEntry, 0, len(journal))
	for _, entry := range journal {
		if kindFilter != "" && string(entry.Kind()) != kindFilter {
			continue
		}

		_, payload, err := engine.MarshalGesture(entry.Gesture)
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", entry.Seq, err)
		}
		var args map[string]any
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, fmt.Errorf("seq %d: decode args: %w", entry.Seq, err)
		}

		timeline = append(timeline, TraceEntry{
			Seq:        entry.Seq,
			Kind:       string(entry.Kind()),
			Args:       args,
			Instance:   entry.InstanceID,
			Connection: entry.ConnectionID,
			Error:      string(entry.ErrorCode),
		})
	}
	return timeline, nil
}

func traceStats(journal []engine.JournalEntry) TraceStats {
	stats := TraceStats{TotalGestures: len(journal)}
	for _, entry := range journal {
		switch {
		case entry.Rejected():
			stats.Rejected++
		case entry.InstanceID != "":
			stats.Placed++
		case entry.ConnectionID != "":
			stats.Connected++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Design: %s\n", result.Design)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no gestures)")
	} else {
		for _, entry := range result.Timeline {
			formatTimelineEntry(w, entry, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Gestures:  %d\n", result.Stats.TotalGestures)
	fmt.Fprintf(w, "  Rejected:  %d\n", result.Stats.Rejected)
	fmt.Fprintf(w, "  Placed:    %d\n", result.Stats.Placed)
	fmt.Fprintf(w, "  Connected: %d\n", result.Stats.Connected)

	return nil
}

// formatTimelineEntry formats a single timeline entry for text output.
// Arguments are shown only in verbose mode.
func formatTimelineEntry(w io.Writer, entry TraceEntry, verbose bool) {
	line := fmt.Sprintf("  [%d] %s", entry.Seq, strings.ToUpper(entry.Kind))
	switch {
	case entry.Error != "":
		line += " ✗ " + entry.Error
	case entry.Instance != "":
		line += " → " + truncateID(entry.Instance)
	case entry.Connection != "":
		line += " → " + truncateID(entry.Connection)
	}
	fmt.Fprintln(w, line)

	if verbose && len(entry.Args) > 0 {
		fmt.Fprintf(w, "       Args: %s\n", formatArgs(entry.Args))
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
