package harness

import "github.com/roach88/querycanvas/internal/ir"

// TraceEvent records one applied gesture.
type TraceEvent struct {
	Seq        int64          `json:"seq"`
	Kind       string         `json:"kind"`
	Args       map[string]any `json:"args"`
	Error      string         `json:"error,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Connection string         `json:"connection,omitempty"`
	Session    string         `json:"session"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every applied gesture in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Query is the compiled query of the final canvas.
	Query string `json:"query"`

	// Warnings are the portability warnings of the final query.
	Warnings []string `json:"warnings,omitempty"`

	// Design is the final canvas.
	Design ir.Design `json:"design"`

	// Session is the final session state.
	Session ir.SessionState `json:"session"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
