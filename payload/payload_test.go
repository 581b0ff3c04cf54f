package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/busrelay/api"
	"github.com/momentics/busrelay/internal/codec"
)

func TestExtract_Field(t *testing.T) {
	body, err := Encode(map[string]string{"PKT": "ping"})
	require.NoError(t, err)

	value, text, err := Extract(body, DefaultField)
	require.NoError(t, err)
	assert.Equal(t, "ping", value)
	assert.JSONEq(t, `{"PKT":"ping"}`, string(text))
}

func TestExtract_MissingField(t *testing.T) {
	body, err := Encode(map[string]string{"OTHER": "x"})
	require.NoError(t, err)
	_, _, err = Extract(body, DefaultField)
	assert.ErrorIs(t, err, api.ErrFieldNotFound)
}

func TestExtract_NonStringField(t *testing.T) {
	body, err := codec.Marshal(map[string]any{"PKT": 42})
	require.NoError(t, err)
	_, _, err = Extract(body, DefaultField)
	assert.ErrorIs(t, err, api.ErrFieldNotFound)
}

func TestToJSON_Malformed(t *testing.T) {
	for name, body := range map[string][]byte{
		"empty":     nil,
		"truncated": {0xa1, 0x63},
		"not a map": mustMarshal(t, "text"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ToJSON(body)
			assert.ErrorIs(t, err, api.ErrMalformedPayload)
		})
	}
}

func TestField_MalformedText(t *testing.T) {
	_, err := Field([]byte("{not json"), DefaultField)
	assert.ErrorIs(t, err, api.ErrMalformedPayload)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := codec.Marshal(v)
	require.NoError(t, err)
	return b
}
