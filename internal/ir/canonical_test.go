package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Primitives(t *testing.T) {
	testCases := []struct {
		name  string
		input any
		want  string
	}{
		{"string", "users", `"users"`},
		{"int", 42, `42`},
		{"negative int64", int64(-7), `-7`},
		{"true", true, `true`},
		{"false", false, `false`},
		{"empty array", []any{}, `[]`},
		{"empty object", map[string]any{}, `{}`},
		{"no html escaping", "a<b>&c", `"a<b>&c"`},
		{"control characters", "a\nb\tc\x01", `"a\nb\tc\u0001"`},
		{"quote and backslash", `say "hi" \o/`, `"say \"hi\" \\o/"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MarshalCanonical(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestMarshalCanonical_KeyOrdering(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b":  1,
		"a":  2,
		"aa": 3,
		"B":  4,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"B":4,"a":2,"aa":3,"b":1}`, string(got))
}

func TestMarshalCanonical_UTF16Ordering(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FF61
	// in UTF-16 even though the UTF-8 bytes sort after.
	got, err := MarshalCanonical(map[string]any{
		"\uff61":     1,
		"\U0001F600": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(got))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	testCases := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"float", 1.5},
		{"nested float", []any{"ok", 2.5}},
		{"nested nil", map[string]any{"x": nil}},
		{"unsupported", struct{}{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MarshalCanonical(tc.input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonical_Design(t *testing.T) {
	d := Design{
		Name: "orders",
		Instances: []PlacedInstance{
			{InstanceID: "i1", RelationID: "users", Position: Position{X: 10, Y: -5}},
		},
		Connections: []Connection{},
	}

	got, err := MarshalCanonical(d)
	require.NoError(t, err)
	assert.Equal(t,
		`{"connections":[],"instances":[{"instance_id":"i1","position":{"x":10,"y":-5},"relation_id":"users"}],"version":"1"}`,
		string(got))
}
