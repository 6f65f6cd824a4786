package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()

	require.NoError(t, id1.Validate())
	require.NoError(t, id2.Validate())
	assert.NotEqual(t, id1, id2)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "valid uuid", input: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{name: "empty", input: "", expectErr: true},
		{name: "garbage", input: "not-a-uuid", expectErr: true},
		{name: "truncated", input: "6ba7b810-9dad-11d1", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestID_JSONRoundTrip(t *testing.T) {
	id := NewID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestID_JSONZero(t *testing.T) {
	var id ID
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var decoded ID
	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsZero())
}
