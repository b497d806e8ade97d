package canvas

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/testutil"
)

// newTestBuilder returns a builder over the shop catalog with instance ids
// i1, i2, ... and connection ids c1, c2, ...
func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	base := []Option{
		WithInstanceIDs(NewSequenceGenerator("i")),
		WithConnectionIDs(NewSequenceGenerator("c")),
	}
	return NewBuilder(testutil.ShopCatalog(), append(base, opts...)...)
}

func mustPlace(t *testing.T, b *Builder, relationID string) ir.PlacedInstance {
	t.Helper()
	inst, err := b.PlaceRelation(relationID, ir.Position{})
	require.NoError(t, err)
	return inst
}

func mustConnect(t *testing.T, b *Builder, src, srcCol, tgt, tgtCol string) ir.Connection {
	t.Helper()
	_, err := b.ActivateField(src, srcCol)
	require.NoError(t, err)
	act, err := b.ActivateField(tgt, tgtCol)
	require.NoError(t, err)
	require.NotNil(t, act.Connection)
	return *act.Connection
}
