package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/ir"
)

func sampleResult() *Result {
	r := NewResult()
	r.Query = "SELECT\n    users.id,\n    orders.id\nFROM users\nFULL JOIN orders ON users.id = orders.user_id"
	r.Design = ir.Design{
		Instances: []ir.PlacedInstance{
			{InstanceID: "i1", RelationID: "users"},
			{InstanceID: "i2", RelationID: "orders"},
		},
		Connections: []ir.Connection{{ID: "c1", SourceInstanceID: "i1", SourceColumn: "id", TargetInstanceID: "i2", TargetColumn: "user_id", JoinKind: ir.JoinFull}},
	}
	r.Warnings = []string{"join 1: FULL JOIN is not supported by MySQL"}
	r.AddTrace(TraceEvent{Seq: 1, Kind: "place", Args: map[string]any{"relation_id": "users"}, Session: "idle"})
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	result := sampleResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertQueryEquals, Query: result.Query + "\n"},
		{Type: AssertQueryContains, Text: "FULL JOIN orders"},
		{Type: AssertInstanceCount, Count: 2},
		{Type: AssertConnectionCount, Count: 1},
		{Type: AssertSessionState, State: "idle"},
		{Type: AssertPortable, Portable: boolPtr(false), Warning: "MySQL"},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	result := sampleResult()
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertQueryEquals, Query: "SELECT * FROM users"},
		{Type: AssertQueryContains, Text: "LEFT JOIN"},
		{Type: AssertInstanceCount, Count: 3},
		{Type: AssertConnectionCount, Count: 0},
		{Type: AssertSessionState, State: "armed"},
		{Type: AssertPortable, Portable: boolPtr(true)},
		{Type: AssertPortable, Warning: "SQLite"},
		{Type: "bogus"},
	})

	require.Len(t, errs, 8)
	assert.Contains(t, errs[0], "assertion 0: Assertion failed: query_equals")
	assert.Contains(t, errs[1], `Expected: query containing "LEFT JOIN"`)
	assert.Contains(t, errs[2], "Actual: 2 instances")
	assert.Contains(t, errs[3], "Actual: 1 connections")
	assert.Contains(t, errs[4], "Actual: session idle")
	assert.Contains(t, errs[5], "portable=false")
	assert.Contains(t, errs[6], `a warning containing "SQLite"`)
	assert.Equal(t, `assertion 7: unknown assertion type "bogus"`, errs[7])
}

func TestAssertionError_IncludesTraceAndQuery(t *testing.T) {
	result := sampleResult()
	result.Trace = append(result.Trace, TraceEvent{Seq: 2, Kind: "activate", Error: "UNKNOWN_COLUMN"})

	err := assertInstanceCount(result, Assertion{Type: AssertInstanceCount, Count: 5})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: instance_count")
	assert.Contains(t, msg, "Expected: 5 instances")
	assert.Contains(t, msg, "[1] place")
	assert.Contains(t, msg, "[2] activate")
	assert.Contains(t, msg, "-> UNKNOWN_COLUMN")
	assert.Contains(t, msg, "FROM users")
}
