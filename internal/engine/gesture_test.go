package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querycanvas/internal/ir"
)

func TestGestureCodec(t *testing.T) {
	testCases := []struct {
		name    string
		gesture Gesture
		kind    GestureKind
		payload string
	}{
		{"place", PlaceRelation{RelationID: "users", Position: ir.Position{X: 10, Y: 20}}, KindPlaceRelation, `{"relation_id":"users","position":{"x":10,"y":20}}`},
		{"activate", ActivateField{InstanceID: "i1", Column: "id"}, KindActivateField, `{"instance_id":"i1","column":"id"}`},
		{"set kind", SetJoinKind{ConnectionID: "c1", JoinKind: ir.JoinFull}, KindSetJoinKind, `{"connection_id":"c1","join_kind":"FULL"}`},
		{"reset", ResetCanvas{}, KindResetCanvas, `{}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kind, payload, err := MarshalGesture(tc.gesture)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
			assert.JSONEq(t, tc.payload, string(payload))

			back, err := UnmarshalGesture(kind, payload)
			require.NoError(t, err)
			assert.Equal(t, tc.gesture, back)
		})
	}
}

func TestUnmarshalGesture_EmptyPayload(t *testing.T) {
	g, err := UnmarshalGesture(KindCancelSession, nil)
	require.NoError(t, err)
	assert.Equal(t, CancelSession{}, g)

	g, err = UnmarshalGesture(KindRemoveInstance, nil)
	require.NoError(t, err)
	assert.Equal(t, RemoveInstance{}, g)
}

func TestUnmarshalGesture_Errors(t *testing.T) {
	_, err := UnmarshalGesture("teleport", []byte(`{}`))
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownGesture, re.Code)

	_, err = UnmarshalGesture(KindPlaceRelation, []byte(`{"relation_id":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal place gesture")
}

func TestMarshalGesture_Nil(t *testing.T) {
	_, _, err := MarshalGesture(nil)
	assert.Error(t, err)
}

func TestGesture_YAMLFieldNames(t *testing.T) {
	var g SetJoinKind
	require.NoError(t, yaml.Unmarshal([]byte("connection_id: c2\njoin_kind: LEFT\n"), &g))
	assert.Equal(t, SetJoinKind{ConnectionID: "c2", JoinKind: ir.JoinLeft}, g)
}
