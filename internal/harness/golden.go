package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/querycanvas/internal/ir"
)

// TraceSnapshot captures a scenario's trace and final query.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Query        string       `json:"query"`
}

// toCanonicalMap converts a TraceSnapshot to the generic form accepted by
// ir.MarshalCanonical. Empty optional fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":     event.Seq,
			"kind":    event.Kind,
			"args":    event.Args,
			"session": event.Session,
		}
		if event.Args == nil {
			eventMap["args"] = map[string]any{}
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		if event.Instance != "" {
			eventMap["instance"] = event.Instance
		}
		if event.Connection != "" {
			eventMap["connection"] = event.Connection
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"query":         s.Query,
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// RunWithGolden executes a scenario and compares its compiled query
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the query doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, relations ir.RelationLookup) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, relations)
	if err != nil {
		return nil, err
	}

	newGoldie(t).Assert(t, scenario.Name, []byte(result.Query))
	return result, nil
}

// MarshalTrace encodes a result's trace and query as canonical JSON.
func MarshalTrace(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Query:        result.Query,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// AssertTraceGolden compares a result's trace and query, as canonical
// JSON, against testdata/golden/{name}.trace.golden.
func AssertTraceGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(name, result)
	if err != nil {
		return err
	}

	newGoldie(t).Assert(t, name+".trace", traceJSON)
	return nil
}
