package canon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline/internal/value"
)

func TestHash_DeterministicAcross100Invocations(t *testing.T) {
	v := value.Map{"q": value.String("hi"), "n": value.Int(3)}
	first, err := Hash(v)
	require.NoError(t, err)
	require.Len(t, first, 64)
	for i := 0; i < 100; i++ {
		h, err := Hash(v)
		require.NoError(t, err)
		require.Equal(t, first, h)
	}
}

func TestHash_MappingOrderIrrelevant(t *testing.T) {
	m1 := value.Map{"b": value.Int(2), "a": value.Int(1)}
	m2 := value.Map{"a": value.Int(1), "b": value.Int(2)}
	h1, err := Hash(m1)
	require.NoError(t, err)
	h2, err := Hash(m2)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestHash_DiffersOnDifferentContent(t *testing.T) {
	h1, err := Hash(value.String("a"))
	require.NoError(t, err)
	h2, err := Hash(value.String("b"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestPreview_UsesFullHashAndPrefix(t *testing.T) {
	v := value.String("hello")
	full, err := Hash(v)
	require.NoError(t, err)
	preview, err := Preview(v)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(preview, "sha256:"+full+":"))
}
