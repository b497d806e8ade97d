package canvas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/ir"
)

var propertyRelations = map[string][]string{
	"users":    {"id", "email", "manager_id"},
	"orders":   {"id", "user_id", "total"},
	"products": {"id", "name"},
}

// randomOp applies one random gesture, occasionally with invalid ids.
func randomOp(t *testing.T, rng *rand.Rand, b *Builder) {
	t.Helper()
	instances := b.Instances()
	pickInstance := func() (string, string) {
		if len(instances) == 0 || rng.Intn(10) == 0 {
			return "ghost", "users"
		}
		inst := instances[rng.Intn(len(instances))]
		return inst.InstanceID, inst.RelationID
	}
	pickColumn := func(relationID string) string {
		cols := propertyRelations[relationID]
		if rng.Intn(12) == 0 {
			return "nope"
		}
		return cols[rng.Intn(len(cols))]
	}

	switch rng.Intn(8) {
	case 0, 1:
		rels := []string{"users", "orders", "products"}
		_, err := b.PlaceRelation(rels[rng.Intn(len(rels))], ir.Position{X: rng.Int63n(500), Y: rng.Int63n(500)})
		require.NoError(t, err)
	case 2:
		id, _ := pickInstance()
		b.RemoveInstance(id)
	case 3:
		id, _ := pickInstance()
		_ = b.MoveInstance(id, ir.Position{X: rng.Int63n(500)})
	case 4, 5:
		id, rel := pickInstance()
		_, _ = b.ActivateField(id, pickColumn(rel))
	case 6:
		conns := b.Connections()
		if len(conns) > 0 {
			c := conns[rng.Intn(len(conns))]
			require.NoError(t, b.SetJoinKind(c.ID, ir.JoinKinds[rng.Intn(len(ir.JoinKinds))]))
		}
	case 7:
		conns := b.Connections()
		if len(conns) > 0 && rng.Intn(2) == 0 {
			b.RemoveConnection(conns[rng.Intn(len(conns))].ID)
		} else {
			b.CancelSession()
		}
	}
}

// checkInvariants asserts the structural invariants of a canvas.
func checkInvariants(t *testing.T, b *Builder) {
	t.Helper()
	for _, c := range b.Connections() {
		src, ok := b.Instance(c.SourceInstanceID)
		require.True(t, ok, "connection %s references missing source", c.ID)
		tgt, ok := b.Instance(c.TargetInstanceID)
		require.True(t, ok, "connection %s references missing target", c.ID)
		require.NotEqual(t, c.SourceInstanceID, c.TargetInstanceID)

		srcRel, _ := b.Relations().Lookup(src.RelationID)
		tgtRel, _ := b.Relations().Lookup(tgt.RelationID)
		require.True(t, srcRel.HasColumn(c.SourceColumn))
		require.True(t, tgtRel.HasColumn(c.TargetColumn))
		require.True(t, c.JoinKind.Valid())
	}

	if s := b.Session(); s.Armed {
		_, ok := b.Instance(s.SourceInstanceID)
		require.True(t, ok, "session armed on a missing instance")
	}
}

func TestProperty_InvariantsHoldUnderRandomGestures(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		b := newTestBuilder(t)

		for step := 0; step < 200; step++ {
			randomOp(t, rng, b)
			checkInvariants(t, b)

			// Compile is total and deterministic on every reachable state.
			first := b.RequestCompile()
			require.Equal(t, first, b.RequestCompile())
		}
	}
}

func TestProperty_CascadeOnRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := newTestBuilder(t)
	for step := 0; step < 300; step++ {
		randomOp(t, rng, b)
	}

	for _, inst := range b.Instances() {
		b.RemoveInstance(inst.InstanceID)
		assert.Empty(t, b.ConnectionsTouching(inst.InstanceID))
		for _, c := range b.Connections() {
			assert.False(t, c.Touches(inst.InstanceID))
		}
	}
	assert.Empty(t, b.Connections())
}

func TestProperty_NoSelfConnection(t *testing.T) {
	b := newTestBuilder(t)
	for _, rel := range []string{"users", "orders", "products"} {
		inst := mustPlace(t, b, rel)
		cols := propertyRelations[rel]
		for _, c1 := range cols {
			for _, c2 := range cols {
				before := b.Connections()
				_, err := b.graph.AddConnection(inst.InstanceID, c1, inst.InstanceID, c2)
				require.True(t, IsSameInstance(err))
				require.Equal(t, before, b.Connections())
			}
		}
	}
}
