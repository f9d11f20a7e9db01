package routing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderCursor(t *testing.T) {
	h := MakeHeader(1, 1, 11, 12, 21)

	assert.True(t, h.At(11))
	assert.False(t, h.At(12))
	assert.False(t, h.AtDestination())

	next, ok := h.NextHop()
	require.True(t, ok)
	assert.Equal(t, NodeID(12), next)

	h.Advance()
	assert.True(t, h.At(12))
	assert.Equal(t, 2, h.HopIndex)

	h.Advance()
	assert.True(t, h.AtDestination())

	_, ok = h.NextHop()
	assert.False(t, ok)
}

func TestHeaderAtOutOfBounds(t *testing.T) {
	h := MakeHeader(2, 1, 11)
	assert.False(t, h.At(11))

	empty := SourceRoutingHeader{}
	assert.False(t, empty.At(0))
	assert.False(t, empty.AtDestination())
}

func TestHeaderReversedPrefix(t *testing.T) {
	h := MakeHeader(1, 1, 11, 12, 21)

	rev := h.ReversedPrefix()
	assert.Equal(t, MakeHeader(1, 11, 1), rev)

	h.Advance()
	rev = h.ReversedPrefix()
	assert.Equal(t, MakeHeader(1, 12, 11, 1), rev)

	// The original header is untouched.
	assert.Equal(t, MakeHeader(2, 1, 11, 12, 21), h)
}

func TestHeaderCopy(t *testing.T) {
	h := MakeHeader(0, 1, 11, 12)
	cp := h.Copy()

	cp.Hops[0] = 9
	cp.Advance()

	assert.Equal(t, MakeHeader(0, 1, 11, 12), h)
	assert.Equal(t, MakeHeader(1, 9, 11, 12), cp)
}

func TestNodeTypeText(t *testing.T) {
	for _, nt := range []NodeType{TypeClient, TypeRelay, TypeServer} {
		data, err := json.Marshal(nt)
		require.NoError(t, err)

		var got NodeType
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, nt, got)
	}

	var nt NodeType
	assert.Error(t, json.Unmarshal([]byte(`"drone"`), &nt))
}
