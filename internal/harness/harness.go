package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/catalog"
	"github.com/roach88/querycanvas/internal/engine"
	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/queryir"
	"github.com/roach88/querycanvas/internal/querysql"
	"github.com/roach88/querycanvas/internal/testutil"
)

// Harness is the scenario execution context: one engine with a
// deterministic clock and deterministic ids.
type Harness struct {
	engine    *engine.Engine
	compiler  *querysql.SQLCompiler
	relations ir.RelationLookup
	logger    *slog.Logger
}

// Run executes a scenario on a fresh canvas over relations.
//
// If relations is nil the scenario's own catalog is loaded. Each run
// starts from an empty canvas, seq 1, instance i1 and connection c1.
//
// Execution flow:
//  1. Apply each step's gesture, recording the trace
//  2. Check each step's expect clause
//  3. Compile and validate the final canvas
//  4. Evaluate assertions
func Run(scenario *Scenario, relations ir.RelationLookup) (*Result, error) {
	if relations == nil {
		if scenario.Catalog == "" {
			return nil, fmt.Errorf("scenario %q: no catalog given", scenario.Name)
		}
		cat, err := catalog.Load(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		relations = cat
	}

	compiler, err := scenario.compiler()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	eng := engine.New(relations,
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithInstanceIDs(canvas.NewSequenceGenerator("i")),
		engine.WithConnectionIDs(canvas.NewSequenceGenerator("c")),
		engine.WithCompiler(compiler),
	)

	h := &Harness{
		engine:    eng,
		compiler:  compiler,
		relations: relations,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	h.finish(scenario.Name, result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeSteps applies every step and checks expect clauses.
// Only engine-level failures abort; rejected gestures are part of the trace.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		g, err := step.Gesture()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		out := h.engine.Apply(ctx, g)
		var rt *engine.RuntimeError
		if errors.As(out.Err, &rt) {
			return fmt.Errorf("step %d: %w", i, rt)
		}

		ev, err := traceEvent(out)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		result.AddTrace(ev)

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, out) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i, g.Kind(), msg))
			}
		}

		h.logger.Info("step applied",
			"step", i,
			"seq", out.Seq,
			"kind", g.Kind(),
			"error", ev.Error,
		)
	}
	return nil
}

// finish records the final canvas, query and portability warnings.
func (h *Harness) finish(name string, result *Result) {
	result.Design = h.engine.Snapshot(name)
	result.Session = h.engine.Session()
	result.Query = h.engine.Query()

	sel, ok := h.compiler.Build(result.Design.Instances, result.Design.Connections, h.relations)
	if ok {
		result.Warnings = queryir.Validate(sel).Warnings
	}
}

func traceEvent(out engine.Outcome) (TraceEvent, error) {
	kind, payload, err := engine.MarshalGesture(out.Gesture)
	if err != nil {
		return TraceEvent{}, err
	}
	args, err := canonicalArgs(payload)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("%s args: %w", kind, err)
	}

	ev := TraceEvent{
		Seq:     out.Seq,
		Kind:    string(kind),
		Args:    args,
		Error:   string(canvas.CodeOf(out.Err)),
		Session: out.Session.String(),
	}
	if out.Instance != nil {
		ev.Instance = out.Instance.InstanceID
	}
	if out.Connection != nil {
		ev.Connection = out.Connection.ID
	}
	return ev, nil
}

// canonicalArgs decodes a gesture payload into values ir.MarshalCanonical
// accepts: numbers become int64.
func canonicalArgs(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}

	out, err := convertNumbers(raw)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func convertNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", val)
		}
		return n, nil
	case map[string]any:
		for k, elem := range val {
			conv, err := convertNumbers(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			val[k] = conv
		}
		return val, nil
	case []any:
		for i, elem := range val {
			conv, err := convertNumbers(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			val[i] = conv
		}
		return val, nil
	default:
		return v, nil
	}
}

// checkExpect compares an outcome with an expect clause.
func checkExpect(expect *ExpectClause, out engine.Outcome) []string {
	var errs []string

	got := string(canvas.CodeOf(out.Err))
	if got != expect.Error {
		if expect.Error == "" {
			errs = append(errs, fmt.Sprintf("expected success, got %s", out.Err))
		} else {
			errs = append(errs, fmt.Sprintf("expected error %s, got %q", expect.Error, got))
		}
	}

	if expect.Session != "" && !sessionMatches(expect.Session, out.Session) {
		errs = append(errs, fmt.Sprintf("expected session %s, got %s", expect.Session, out.Session))
	}

	if expect.Instance != "" {
		var id string
		if out.Instance != nil {
			id = out.Instance.InstanceID
		}
		if id != expect.Instance {
			errs = append(errs, fmt.Sprintf("expected instance %s, got %q", expect.Instance, id))
		}
	}

	if expect.Connection != "" {
		var id string
		if out.Connection != nil {
			id = out.Connection.ID
		}
		if id != expect.Connection {
			errs = append(errs, fmt.Sprintf("expected connection %s, got %q", expect.Connection, id))
		}
	}

	if expect.Changed != nil && *expect.Changed != out.Changed {
		errs = append(errs, fmt.Sprintf("expected changed=%t, got %t", *expect.Changed, out.Changed))
	}

	if expect.Query != "" && strings.TrimRight(expect.Query, "\n") != out.Query {
		errs = append(errs, fmt.Sprintf("expected query:\n%s\ngot:\n%s", expect.Query, out.Query))
	}

	return errs
}

// sessionMatches accepts "idle", "armed" (any source) or an exact state.
func sessionMatches(want string, got ir.SessionState) bool {
	switch want {
	case "idle":
		return got.Idle()
	case "armed":
		return got.Armed
	default:
		return want == got.String()
	}
}
