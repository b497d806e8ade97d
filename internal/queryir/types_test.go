package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/querycanvas/internal/ir"
)

func TestTableRefQualifier(t *testing.T) {
	assert.Equal(t, "users", TableRef{Relation: "users"}.Qualifier())
	assert.Equal(t, "users_2", TableRef{Relation: "users", Alias: "users_2"}.Qualifier())
}

func TestSelectTables(t *testing.T) {
	sel := Select{
		From: TableRef{Relation: "users", Alias: "users_1"},
		Joins: []Join{
			{Kind: ir.JoinInner, Table: TableRef{Relation: "users", Alias: "users_2"}},
			{Kind: ir.JoinLeft, Table: TableRef{Relation: "orders"}},
		},
	}
	assert.Equal(t, []string{"users_1", "users_2", "orders"}, sel.Tables())
}

func TestSealedInterfaces(t *testing.T) {
	var q Query = Select{}
	var qp Query = &Select{}
	var p Predicate = ColumnEquals{}
	var pa Predicate = And{}

	assert.NotNil(t, q)
	assert.NotNil(t, qp)
	assert.NotNil(t, p)
	assert.NotNil(t, pa)
}
