package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_UsersOrdersLeft(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/users_orders_left.yaml")
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden -update
	result, err := RunWithGolden(t, scenario, nil)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestAssertTraceGolden_UsersOrdersLeft(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/users_orders_left.yaml")
	require.NoError(t, err)

	result, err := Run(scenario, nil)
	require.NoError(t, err)
	require.NoError(t, AssertTraceGolden(t, scenario.Name, result))
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.Query = "SELECT * FROM users"
	result.AddTrace(TraceEvent{
		Seq:      1,
		Kind:     "place",
		Args:     map[string]any{"relation_id": "users", "position": map[string]any{"x": int64(0), "y": int64(0)}},
		Session:  "idle",
		Instance: "i1",
	})
	result.AddTrace(TraceEvent{Seq: 2, Kind: "cancel", Session: "idle"})
	result.AddTrace(TraceEvent{Seq: 3, Kind: "unlink", Args: map[string]any{"connection_id": "c9"}, Error: "UNKNOWN_CONNECTION", Session: "idle"})

	data, err := MarshalTrace("one", result)
	require.NoError(t, err)

	want := `{"query":"SELECT * FROM users","scenario_name":"one","trace":[` +
		`{"args":{"position":{"x":0,"y":0},"relation_id":"users"},"instance":"i1","kind":"place","seq":1,"session":"idle"},` +
		`{"args":{},"kind":"cancel","seq":2,"session":"idle"},` +
		`{"args":{"connection_id":"c9"},"error":"UNKNOWN_CONNECTION","kind":"unlink","seq":3,"session":"idle"}]}`
	assert.Equal(t, want, string(data))
}
