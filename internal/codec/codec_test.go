package codec

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicMapEncoding(t *testing.T) {
	a, err := Marshal(map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)
	b, err := Marshal(map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeAnyMapAsStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"PKT": "ping", "n": 1})
	require.NoError(t, err)
	var v any
	require.NoError(t, Unmarshal(data, &v))
	m, ok := v.(map[string]any)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, "ping", m["PKT"])
}

func TestUnmarshalFirstStream(t *testing.T) {
	one, err := Marshal("one")
	require.NoError(t, err)
	two, err := Marshal("two")
	require.NoError(t, err)
	stream := append(append([]byte{}, one...), two...)

	var s string
	rest, err := UnmarshalFirst(stream, &s)
	require.NoError(t, err)
	assert.Equal(t, "one", s)
	assert.Equal(t, two, rest)

	_, err = UnmarshalFirst(two[:len(two)-1], &s)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
