package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/ir"
)

func eq(lt, lc, rt, rc string) ColumnEquals {
	return ColumnEquals{Left: ColumnRef{lt, lc}, Right: ColumnRef{rt, rc}}
}

func usersOrders(kind ir.JoinKind) Select {
	return Select{
		Columns: []ColumnRef{{"users", "id"}, {"orders", "user_id"}},
		From:    TableRef{Relation: "users"},
		Joins: []Join{
			{Kind: kind, Table: TableRef{Relation: "orders"}, On: eq("users", "id", "orders", "user_id")},
		},
	}
}

func TestValidate_PortableInnerAndLeft(t *testing.T) {
	for _, kind := range []ir.JoinKind{ir.JoinInner, ir.JoinLeft} {
		t.Run(string(kind), func(t *testing.T) {
			result := Validate(usersOrders(kind))
			assert.True(t, result.IsPortable)
			assert.Empty(t, result.Warnings)
		})
	}
}

func TestValidate_PointerSelect(t *testing.T) {
	sel := usersOrders(ir.JoinInner)
	result := Validate(&sel)
	assert.True(t, result.IsPortable)
}

func TestValidate_OuterJoinPortability(t *testing.T) {
	testCases := []struct {
		kind ir.JoinKind
		want []string
	}{
		{ir.JoinRight, []string{"join 1: RIGHT JOIN is not supported by SQLite < 3.39"}},
		{ir.JoinFull, []string{
			"join 1: FULL JOIN is not supported by MySQL",
			"join 1: FULL JOIN is not supported by SQLite < 3.39",
		}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			result := Validate(usersOrders(tc.kind))
			assert.False(t, result.IsPortable)
			assert.Equal(t, tc.want, result.Warnings)
		})
	}
}

func TestValidate_UnaliasedSelfJoin(t *testing.T) {
	sel := Select{
		Columns: []ColumnRef{{"users", "id"}, {"users", "id"}},
		From:    TableRef{Relation: "users"},
		Joins: []Join{
			{Kind: ir.JoinInner, Table: TableRef{Relation: "users"}, On: eq("users", "manager_id", "users", "id")},
		},
	}

	result := Validate(sel)
	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"users" is already in scope`)
}

func TestValidate_AliasedSelfJoin(t *testing.T) {
	sel := Select{
		Columns: []ColumnRef{{"users_1", "id"}, {"users_2", "id"}},
		From:    TableRef{Relation: "users", Alias: "users_1"},
		Joins: []Join{
			{Kind: ir.JoinInner, Table: TableRef{Relation: "users", Alias: "users_2"}, On: eq("users_1", "manager_id", "users_2", "id")},
		},
	}

	assert.True(t, Validate(sel).IsPortable)
}

func TestValidate_OnReferencesLaterTable(t *testing.T) {
	sel := Select{
		Columns: []ColumnRef{{"users", "id"}, {"orders", "id"}, {"products", "id"}},
		From:    TableRef{Relation: "users"},
		Joins: []Join{
			{Kind: ir.JoinInner, Table: TableRef{Relation: "orders"}, On: eq("products", "id", "orders", "product_id")},
			{Kind: ir.JoinInner, Table: TableRef{Relation: "products"}, On: eq("users", "id", "products", "owner_id")},
		},
	}

	result := Validate(sel)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, `join 1: ON references products.id before "products" is introduced`, result.Warnings[0])
}

func TestValidate_DisconnectedColumns(t *testing.T) {
	sel := Select{
		Columns: []ColumnRef{{"users", "id"}, {"products", "id"}, {"products", "name"}},
		From:    TableRef{Relation: "users"},
	}

	result := Validate(sel)
	assert.Equal(t, []string{`columns of "products" are selected but "products" is never joined`}, result.Warnings)
}

func TestValidate_DuplicateJoin(t *testing.T) {
	sel := usersOrders(ir.JoinInner)
	sel.Joins = append(sel.Joins, sel.Joins[0])

	result := Validate(sel)
	assert.Contains(t, result.Warnings, "join 2 duplicates join 1")
}

func TestValidate_MalformedInput(t *testing.T) {
	t.Run("nil query", func(t *testing.T) {
		assert.Equal(t, []string{"nil query"}, Validate(nil).Warnings)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var sel *Select
		assert.Equal(t, []string{"nil query"}, Validate(sel).Warnings)
	})

	t.Run("missing ON", func(t *testing.T) {
		sel := usersOrders(ir.JoinInner)
		sel.Joins[0].On = nil
		assert.Equal(t, []string{"join 1: missing ON condition"}, Validate(sel).Warnings)
	})

	t.Run("empty AND", func(t *testing.T) {
		sel := usersOrders(ir.JoinInner)
		sel.Joins[0].On = And{}
		assert.Equal(t, []string{"join 1: empty AND"}, Validate(sel).Warnings)
	})
}

func TestValidate_StarSkipsProjectionCheck(t *testing.T) {
	result := Validate(Select{Star: true, From: TableRef{Relation: "orders"}})
	assert.True(t, result.IsPortable)
}
