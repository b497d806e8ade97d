package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/engine"
	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/testutil"
)

func boolPtr(b bool) *bool { return &b }

func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario, nil)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps))
		})
	}
}

func TestRun_TraceRecordsOutcomes(t *testing.T) {
	scenario := &Scenario{
		Name: "trace",
		Steps: []Step{
			{Place: &engine.PlaceRelation{RelationID: "users"}},
			{Place: &engine.PlaceRelation{RelationID: "orders", Position: ir.Position{X: 240}}},
			{Activate: &engine.ActivateField{InstanceID: "i1", Column: "id"}},
			{Activate: &engine.ActivateField{InstanceID: "i1", Column: "email"}},
			{Activate: &engine.ActivateField{InstanceID: "i2", Column: "user_id"}},
			{Compile: &engine.RequestCompile{}},
		},
	}

	result, err := Run(scenario, testutil.ShopCatalog())
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 6)

	for i, ev := range result.Trace {
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	assert.Equal(t, "place", result.Trace[0].Kind)
	assert.Equal(t, "i1", result.Trace[0].Instance)
	assert.Equal(t, map[string]any{
		"relation_id": "users",
		"position":    map[string]any{"x": int64(0), "y": int64(0)},
	}, result.Trace[0].Args)

	assert.Equal(t, "armed(i1.id)", result.Trace[2].Session)
	assert.Equal(t, "SAME_INSTANCE", result.Trace[3].Error)
	assert.Equal(t, "armed(i1.id)", result.Trace[3].Session)
	assert.Equal(t, "c1", result.Trace[4].Connection)
	assert.Equal(t, "idle", result.Trace[4].Session)
	assert.Equal(t, map[string]any{}, result.Trace[5].Args)

	assert.Len(t, result.Design.Instances, 2)
	assert.Len(t, result.Design.Connections, 1)
	assert.True(t, result.Session.Idle())
	assert.Contains(t, result.Query, "INNER JOIN orders ON users.id = orders.user_id")
	assert.Empty(t, result.Warnings)
}

func TestRun_ExpectFailuresAreReported(t *testing.T) {
	scenario := &Scenario{
		Name: "expect_failures",
		Steps: []Step{
			{
				Place:  &engine.PlaceRelation{RelationID: "users"},
				Expect: &ExpectClause{Instance: "i7"},
			},
			{
				Activate: &engine.ActivateField{InstanceID: "i1", Column: "ghost"},
			},
			{
				Cancel: &engine.CancelSession{},
				Expect: &ExpectClause{Changed: boolPtr(true)},
			},
			{
				Place:  &engine.PlaceRelation{RelationID: "orders"},
				Expect: &ExpectClause{Error: "UNKNOWN_RELATION"},
			},
		},
	}

	result, err := Run(scenario, testutil.ShopCatalog())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, `step 0 (place): expected instance i7, got "i1"`, result.Errors[0])
	assert.Contains(t, result.Errors[1], "expected changed=true, got false")
	assert.Contains(t, result.Errors[2], `expected error UNKNOWN_RELATION, got ""`)
}

func TestRun_UnexpectedRejectionIsReported(t *testing.T) {
	scenario := &Scenario{
		Name: "rejection",
		Steps: []Step{
			{
				Activate: &engine.ActivateField{InstanceID: "i1", Column: "id"},
				Expect:   &ExpectClause{Session: "armed"},
			},
		},
	}

	result, err := Run(scenario, testutil.ShopCatalog())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected success, got UNKNOWN_INSTANCE")
	assert.Contains(t, result.Errors[1], "expected session armed, got idle")
}

func TestRun_EmptyCanvasQuery(t *testing.T) {
	scenario := &Scenario{
		Name: "reset",
		Steps: []Step{
			{Place: &engine.PlaceRelation{RelationID: "users"}},
			{Reset: &engine.ResetCanvas{}},
		},
	}

	result, err := Run(scenario, testutil.ShopCatalog())
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t, "-- no relations selected", result.Query)
	assert.Empty(t, result.Design.Instances)
	assert.Empty(t, result.Warnings)
}

func TestRun_IsDeterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cascade.yaml")
	require.NoError(t, err)

	first, err := Run(scenario, nil)
	require.NoError(t, err)
	second, err := Run(scenario, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Query, second.Query)
	assert.Equal(t, first.Design, second.Design)
}

func TestRun_Errors(t *testing.T) {
	t.Run("no catalog", func(t *testing.T) {
		_, err := Run(&Scenario{Name: "x", Steps: []Step{{Cancel: &engine.CancelSession{}}}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no catalog given")
	})

	t.Run("missing catalog", func(t *testing.T) {
		_, err := Run(&Scenario{Name: "x", Catalog: "testdata/nope"}, nil)
		require.Error(t, err)
	})

	t.Run("empty step", func(t *testing.T) {
		_, err := Run(&Scenario{Name: "x", Steps: []Step{{}}}, testutil.ShopCatalog())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step 0: no gesture")
	})

	t.Run("bad alias mode", func(t *testing.T) {
		_, err := Run(&Scenario{Name: "x", Alias: "sometimes"}, testutil.ShopCatalog())
		require.Error(t, err)
	})
}

func TestSessionMatches(t *testing.T) {
	armed := ir.SessionState{Armed: true, SourceInstanceID: "i1", SourceColumn: "id"}

	assert.True(t, sessionMatches("idle", ir.SessionState{}))
	assert.False(t, sessionMatches("idle", armed))
	assert.True(t, sessionMatches("armed", armed))
	assert.True(t, sessionMatches("armed(i1.id)", armed))
	assert.False(t, sessionMatches("armed(i2.id)", armed))
}
