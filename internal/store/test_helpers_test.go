package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/querycanvas/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDesign returns users LEFT JOIN orders on i1/i2/c1.
func createTestDesign() ir.Design {
	return ir.Design{
		Name: "users-orders",
		Instances: []ir.PlacedInstance{
			{InstanceID: "i1", RelationID: "users"},
			{InstanceID: "i2", RelationID: "orders", Position: ir.Position{X: 240, Y: -16}},
		},
		Connections: []ir.Connection{
			{ID: "c1", SourceInstanceID: "i1", SourceColumn: "id", TargetInstanceID: "i2", TargetColumn: "user_id", JoinKind: ir.JoinLeft},
		},
	}
}
