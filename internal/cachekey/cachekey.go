// Package cachekey derives short identity keys for in-process memoization.
//
// The keys come from SipHash-2-4 under a random per-process key. They are
// not a security boundary: never use them where collision resistance or
// unpredictability matters.
package cachekey

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/dchest/siphash"
)

// KeySize is the SipHash key length in bytes.
const KeySize = 16

type Deriver struct {
	k0, k1 uint64
}

// NewDeriver draws a fresh key from crypto/rand.
func NewDeriver() (*Deriver, error) {
	return NewDeriverFrom(rand.Reader)
}

func NewDeriverFrom(r io.Reader) (*Deriver, error) {
	var key [KeySize]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, err
	}
	return NewDeriverWithKey(key), nil
}

func NewDeriverWithKey(key [KeySize]byte) *Deriver {
	return &Deriver{
		k0: binary.LittleEndian.Uint64(key[:8]),
		k1: binary.LittleEndian.Uint64(key[8:]),
	}
}

type identity struct {
	Class string `json:"class"`
	ID    int64  `json:"id"`
}

// Derive returns base64url(SipHash-2-4({"class":typeName,"id":id})).
func (d *Deriver) Derive(typeName string, id int64) string {
	// marshalling a string and an int64 cannot fail
	msg, _ := json.Marshal(identity{Class: typeName, ID: id})

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], siphash.Hash(d.k0, d.k1, msg))
	return base64.URLEncoding.EncodeToString(sum[:])
}
