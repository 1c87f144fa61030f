package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	t.Run("sorts keys and strips whitespace", func(t *testing.T) {
		out, err := Transform([]byte(`{ "b": 1, "a": {"z": true, "y": null} }`))
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"y":null,"z":true},"b":1}`, string(out))
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := Transform([]byte(`{"a":`))
		require.Error(t, err)
	})
}

func TestHash(t *testing.T) {
	type doc struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	h1, err := Hash(doc{B: 2, A: "x"})
	require.NoError(t, err)
	h2, err := Hash(map[string]any{"a": "x", "b": 2})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	h3, err := Hash(doc{B: 3, A: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
