package envelope

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatPayload struct {
	Origin string   `json:"origin"`
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Count  int      `json:"count"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload chatPayload
		origin  string
	}{
		{"plain", chatPayload{Text: "hello", Count: 1}, "a"},
		{"delimiter in values", chatPayload{Text: "a&b&&c", Tags: []string{"x&y", "&"}}, "b"},
		{"stale origin overwritten", chatPayload{Origin: "forged", Text: "hi"}, "c"},
		{"delimiter in origin", chatPayload{Text: "hi"}, "unit&1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := Encode("chat", tt.payload, tt.origin)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(wire, "chat&"))

			typeID, body, err := Decode(wire)
			require.NoError(t, err)
			assert.Equal(t, "chat", typeID)

			var decoded chatPayload
			require.NoError(t, Unmarshal(body, &decoded))

			want := tt.payload
			want.Origin = tt.origin
			assert.Equal(t, want, decoded)
		})
	}
}

func TestEncodeAddsOriginWhenTypeHasNone(t *testing.T) {
	wire, err := Encode("bare", map[string]int{"n": 1}, "a")
	require.NoError(t, err)

	_, body, err := Decode(wire)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, Unmarshal(body, &decoded))
	assert.Equal(t, "a", decoded[OriginKey])
	assert.EqualValues(t, 1, decoded["n"])
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode("", chatPayload{}, "a")
	assert.ErrorIs(t, err, ErrInvalidTypeID)

	_, err = Encode("bad&id", chatPayload{}, "a")
	assert.ErrorIs(t, err, ErrInvalidTypeID)

	_, err = Encode("list", []int{1, 2}, "a")
	assert.ErrorIs(t, err, ErrNotAnObject)

	_, err = Encode("chan", map[string]any{"c": make(chan int)}, "a")
	assert.Error(t, err)
}

func TestDecodeKeepsBodyAfterFirstDelimiter(t *testing.T) {
	typeID, body, err := Decode(`chat&{"text":"a&b"}&trailing`)
	require.NoError(t, err)
	assert.Equal(t, "chat", typeID)
	assert.Equal(t, `{"text":"a&b"}&trailing`, body)
}

func TestDecodeMalformed(t *testing.T) {
	for _, wire := range []string{"justsometext", "", "&{}"} {
		_, _, err := Decode(wire)
		assert.True(t, errors.Is(err, ErrMalformedEnvelope), "wire %q", wire)
	}
}

func TestValidateTypeID(t *testing.T) {
	assert.NoError(t, ValidateTypeID("dev.ohate.PingPayload"))
	assert.ErrorIs(t, ValidateTypeID("a&b"), ErrInvalidTypeID)
	assert.ErrorIs(t, ValidateTypeID(""), ErrInvalidTypeID)
}
