package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorEncodeDecode(t *testing.T) {
	c := &Cursor{BeforeID: 42, Resource: "itm_1"}
	encoded, err := c.Encode()
	require.NoError(t, err)
	assert.NotContains(t, encoded, "=")

	got, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not base64", "!!!"},
		{"not json", "bm90IGpzb24"},
		{"no position", "e30"}, // {}
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.encoded)
			assert.Error(t, err)
		})
	}

	_, err := (&Cursor{}).Encode()
	assert.Error(t, err)
}

func TestResume(t *testing.T) {
	c, err := Resume("", "room_1")
	require.NoError(t, err)
	assert.Zero(t, c.BeforeID)
	assert.Equal(t, "room_1", c.Resource)

	next, err := Next(10, "room_1", 5, 5)
	require.NoError(t, err)
	require.NotEmpty(t, next)

	c, err = Resume(next, "room_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.BeforeID)

	_, err = Resume(next, "room_2")
	assert.Error(t, err)
}

func TestNext_ShortPageEnds(t *testing.T) {
	next, err := Next(10, "", 3, 5)
	require.NoError(t, err)
	assert.Empty(t, next)
}
