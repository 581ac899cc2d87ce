package cachekey

import (
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_StableWithinDeriver(t *testing.T) {
	d, err := NewDeriver()
	require.NoError(t, err)

	a := d.Derive("User", 1)
	assert.Equal(t, a, d.Derive("User", 1))
	assert.NotEqual(t, a, d.Derive("User", 2))
	assert.NotEqual(t, a, d.Derive("Post", 1))

	raw, err := base64.URLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 8)
}

func TestDerive_KeyedPerDeriver(t *testing.T) {
	var k1, k2 [KeySize]byte
	k2[0] = 1

	a := NewDeriverWithKey(k1).Derive("User", 1)
	b := NewDeriverWithKey(k2).Derive("User", 1)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, NewDeriverWithKey(k1).Derive("User", 1))
}

func TestNewDeriverFrom_ShortReader(t *testing.T) {
	_, err := NewDeriverFrom(bytes.NewReader(make([]byte, KeySize-1)))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
