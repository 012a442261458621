package linker

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/doclink/internal/ports"
)

func TestFlatten_NestedUsesFullPath(t *testing.T) {
	doc := ports.Document{
		"name": "alice",
		"address": map[string]any{
			"city": "Paris",
			"geo": map[string]any{
				"lat": 48.85,
				"lng": 2.35,
			},
		},
	}

	got := Flatten(doc)
	assert.Equal(t, map[string]any{
		"name":            "alice",
		"address.city":    "Paris",
		"address.geo.lat": 48.85,
		"address.geo.lng": 2.35,
	}, got)
}

func TestFlatten_ListsAreLeaves(t *testing.T) {
	tags := []any{"a", map[string]any{"b": 1.0}}
	got := Flatten(ports.Document{"tags": tags, "n": nil})
	assert.Equal(t, map[string]any{"tags": tags, "n": nil}, got)
}

func TestFlatten_EmptyNestedMapDropsKey(t *testing.T) {
	got := Flatten(ports.Document{"a": map[string]any{}, "b": 1.0})
	assert.Equal(t, map[string]any{"b": 1.0}, got)
}

func TestFlatten_Deterministic(t *testing.T) {
	doc := ports.Document{
		"x": map[string]any{"y": map[string]any{"z": "deep"}, "w": 3.0},
		"v": []any{1.0, 2.0},
		"u": true,
	}
	first := Flatten(doc)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Flatten(doc))
	}
}

func TestFlatten_LiteralDottedKeyWinsCollision(t *testing.T) {
	doc := ports.Document{
		"a":   map[string]any{"b": "nested"},
		"a.b": "literal",
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, map[string]any{"a.b": "literal"}, Flatten(doc))
	}
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	inner := map[string]any{"b": 1.0}
	doc := ports.Document{"a": inner}
	Flatten(doc)
	assert.Equal(t, ports.Document{"a": map[string]any{"b": 1.0}}, doc)
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same string", "abc", "abc", true},
		{"int vs float", 1234, 1234.0, true},
		{"string vs number", "1234", 1234.0, false},
		{"bool vs number", true, 1.0, false},
		{"nil vs nil", nil, nil, true},
		{"map key order", map[string]any{"a": 1.0, "b": 2.0}, map[string]any{"b": 2.0, "a": 1.0}, true},
		{"map differs", map[string]any{"a": 1.0}, map[string]any{"a": 2.0}, false},
		{"list order matters", []any{1.0, 2.0}, []any{2.0, 1.0}, false},
		{"list equal", []any{"x", 2.0}, []any{"x", 2.0}, true},
		{"number literal vs float", json.Number("1234.0"), 1234.0, true},
		{"exponent literal", json.Number("1.5e3"), json.Number("1500"), true},
		{"decimal literal vs float", json.Number("0.1"), 0.1, true},
		{"large ints stay distinct", json.Number("9007199254740993"), json.Number("9007199254740992"), false},
		{"large int vs int64", json.Number("9007199254740993"), int64(9007199254740993), true},
		{"number literal vs string", json.Number("7"), "7", false},
		{"invalid utf8 stays distinct", "a\xff", "a\xfe", false},
		{"nested large ints", map[string]any{"id": json.Number("18446744073709551615")}, map[string]any{"id": json.Number("18446744073709551614")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValuesEqual(tt.a, tt.b))
		})
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"k1": 1234, "k2": {"k3": "abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, ports.Document{"k1": json.Number("1234"), "k2": map[string]any{"k3": "abc"}}, doc)

	for _, bad := range []string{
		``,
		`not json`,
		`[1, 2]`,
		`"scalar"`,
		`42`,
		`null`,
		`{"a": 1} {"b": 2}`,
		`{"a": 1`,
	} {
		_, err := ParseDocument([]byte(bad))
		assert.True(t, errors.Is(err, ErrParse), "payload %q: %v", bad, err)
	}
}
