package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/querysql"
)

func TestBuilder_PlaceUnknownRelation(t *testing.T) {
	b := newTestBuilder(t)

	_, err := b.PlaceRelation("invoices", ir.Position{})
	assert.True(t, IsUnknownRelation(err))
	assert.Empty(t, b.Instances())
}

func TestBuilder_ScenarioSingleRelation(t *testing.T) {
	b := newTestBuilder(t)
	mustPlace(t, b, "orders")

	assert.Equal(t, "SELECT * FROM orders", b.RequestCompile())
}

func TestBuilder_ScenarioUsersOrdersLeft(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	o := mustPlace(t, b, "orders")
	c := mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")
	require.NoError(t, b.SetJoinKind(c.ID, ir.JoinLeft))

	want := "SELECT\n" +
		"    users.id,\n" +
		"    users.email,\n" +
		"    users.manager_id,\n" +
		"    orders.id,\n" +
		"    orders.user_id,\n" +
		"    orders.total\n" +
		"FROM users\n" +
		"LEFT JOIN orders ON users.id = orders.user_id"
	assert.Equal(t, want, b.RequestCompile())
}

func TestBuilder_ScenarioSelfJoin(t *testing.T) {
	b := newTestBuilder(t)
	u1 := mustPlace(t, b, "users")
	u2 := mustPlace(t, b, "users")
	mustConnect(t, b, u1.InstanceID, "manager_id", u2.InstanceID, "id")

	got := b.RequestCompile()
	assert.Contains(t, got, "    users_1.id,\n")
	assert.Contains(t, got, "    users_2.manager_id\n")
	assert.Contains(t, got, "FROM users AS users_1\nINNER JOIN users AS users_2 ON users_1.manager_id = users_2.id")
}

func TestBuilder_ScenarioDuplicateConnections(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	o := mustPlace(t, b, "orders")
	c1 := mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")
	c2 := mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")

	require.Len(t, b.Connections(), 2)
	assert.NotEqual(t, c1.ID, c2.ID)
	assert.Contains(t, b.RequestCompile(),
		"INNER JOIN orders ON users.id = orders.user_id\nINNER JOIN orders ON users.id = orders.user_id")
}

func TestBuilder_EmptyCanvas(t *testing.T) {
	b := newTestBuilder(t)
	assert.Equal(t, querysql.EmptyCanvasText, b.RequestCompile())
}

func TestBuilder_RemoveCascades(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	o := mustPlace(t, b, "orders")
	p := mustPlace(t, b, "products")
	mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")
	keep := mustConnect(t, b, u.InstanceID, "id", p.InstanceID, "id")
	mustConnect(t, b, p.InstanceID, "id", o.InstanceID, "id")

	assert.True(t, b.RemoveInstance(o.InstanceID))

	assert.Empty(t, b.ConnectionsTouching(o.InstanceID))
	assert.Equal(t, []ir.Connection{keep}, b.Connections())
	assert.Len(t, b.Instances(), 2)
}

func TestBuilder_RemovingBaseChangesFrom(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	mustPlace(t, b, "orders")
	mustPlace(t, b, "products")

	b.RemoveInstance(u.InstanceID)

	assert.Contains(t, b.RequestCompile(), "\nFROM orders")
}

func TestBuilder_MoveKeepsGraph(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	o := mustPlace(t, b, "orders")
	mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")
	before := b.RequestCompile()

	require.NoError(t, b.MoveInstance(o.InstanceID, ir.Position{X: 300, Y: 120}))

	got, ok := b.Instance(o.InstanceID)
	require.True(t, ok)
	assert.Equal(t, ir.Position{X: 300, Y: 120}, got.Position)
	assert.Len(t, b.Connections(), 1)
	assert.Equal(t, before, b.RequestCompile())

	assert.True(t, IsUnknownInstance(b.MoveInstance("ghost", ir.Position{})))
}

func TestBuilder_ResetCanvas(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	o := mustPlace(t, b, "orders")
	mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")
	_, err := b.ActivateField(u.InstanceID, "email")
	require.NoError(t, err)

	b.ResetCanvas()

	assert.Empty(t, b.Instances())
	assert.Empty(t, b.Connections())
	assert.True(t, b.Session().Idle())
	assert.Equal(t, querysql.EmptyCanvasText, b.RequestCompile())

	// Ids keep increasing after a reset.
	next := mustPlace(t, b, "users")
	assert.Equal(t, "i3", next.InstanceID)
}

func TestBuilder_ResolvedConnections(t *testing.T) {
	b := newTestBuilder(t)
	u := mustPlace(t, b, "users")
	o := mustPlace(t, b, "orders")
	c := mustConnect(t, b, u.InstanceID, "id", o.InstanceID, "user_id")
	require.NoError(t, b.SetJoinKind(c.ID, ir.JoinLeft))

	resolved := b.ResolvedConnections()
	require.Len(t, resolved, 1)
	assert.Equal(t, c.ID, resolved[0].ID)
	assert.Equal(t, "users", resolved[0].SourceRelation)
	assert.Equal(t, "orders", resolved[0].TargetRelation)
	assert.Equal(t, "users.id → orders.user_id (LEFT JOIN)", resolved[0].Label)
}

func TestBuilder_WithCompiler(t *testing.T) {
	b := newTestBuilder(t, WithCompiler(querysql.NewSQLCompiler(querysql.WithDialect(querysql.DialectANSI))))
	mustPlace(t, b, "orders")

	assert.Equal(t, `SELECT * FROM "orders"`, b.RequestCompile())
}

func TestBuilder_DefaultIDsAreUUIDs(t *testing.T) {
	b := NewBuilder(newTestBuilder(t).Relations())
	inst, err := b.PlaceRelation("users", ir.Position{})
	require.NoError(t, err)
	assert.Len(t, inst.InstanceID, 36)
}
