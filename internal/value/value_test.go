package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Primitives(t *testing.T) {
	v, err := New(map[string]any{
		"name":  "widget",
		"count": 3,
		"tags":  []any{"a", "b"},
		"nested": map[string]any{
			"ok": true,
		},
	})
	require.NoError(t, err)
	m, ok := v.(Map)
	require.True(t, ok)
	require.Equal(t, String("widget"), m["name"])
	require.Equal(t, Int(3), m["count"])
	require.Equal(t, Sequence{String("a"), String("b")}, m["tags"])
	require.Equal(t, Map{"ok": Bool(true)}, m["nested"])
}

func TestNew_RejectsUnsupportedType(t *testing.T) {
	_, err := New(struct{ X int }{X: 1})
	require.Error(t, err)
}

func TestEqual_NumericCrossType(t *testing.T) {
	require.True(t, Equal(Int(3), Float(3.0)))
	require.True(t, Equal(Float(3.0), Int(3)))
	require.False(t, Equal(Int(3), Int(4)))
}

func TestEqual_BoolNotEqualInt(t *testing.T) {
	require.False(t, Equal(Bool(true), Int(1)))
}

func TestEqual_NegativeZero(t *testing.T) {
	require.True(t, Equal(Float(0.0), Float(-0.0)))
}

func TestEqual_SequenceAndMap(t *testing.T) {
	a := Sequence{Int(1), Map{"x": String("y")}}
	b := Sequence{Int(1), Map{"x": String("y")}}
	require.True(t, Equal(a, b))

	c := Sequence{Int(1), Map{"x": String("z")}}
	require.False(t, Equal(a, c))
}

func TestConcat(t *testing.T) {
	seq := Concat(String("a"), Int(1))
	require.Equal(t, Sequence{String("a"), Int(1)}, seq)
}
