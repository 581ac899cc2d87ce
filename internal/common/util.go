package common

import (
	"encoding/base64"
	"encoding/binary"
	"io"
)

// MakeRandBase64URLString reads size bytes from r and returns them encoded
// with the URL-safe base64 alphabet.
func MakeRandBase64URLString(r io.Reader, size int) (string, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// OwnerContext encodes a numeric owner ID as 8 little-endian bytes. It is the
// associated data that binds stored secrets and password hashes to a user.
func OwnerContext(id int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(id))
	return b
}
