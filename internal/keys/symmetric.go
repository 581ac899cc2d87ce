package keys

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// SymmetricKeySize is the length of a SymmetricKey in bytes.
const SymmetricKeySize = 32

var (
	ErrInvalidKeySize = errors.New("keys: invalid key size")
	ErrNotMarshalable = errors.New("keys: key material cannot be marshaled")
)

const redacted = "REDACTED"

// SymmetricKey is a 32-byte secret used as the root of the cipher and MAC
// sub-keys. It has no equality method.
type SymmetricKey struct {
	enclave *memguard.Enclave
}

// GenerateSymmetricKey draws a fresh key from crypto/rand.
func GenerateSymmetricKey() (*SymmetricKey, error) {
	return GenerateSymmetricKeyFrom(rand.Reader)
}

// GenerateSymmetricKeyFrom draws a fresh key from r.
func GenerateSymmetricKeyFrom(r io.Reader) (*SymmetricKey, error) {
	buf := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("keys: reading random key: %w", err)
	}
	return NewSymmetricKey(buf)
}

// NewSymmetricKey seals raw into an enclave. raw is wiped on return, whether
// or not the call succeeds.
func NewSymmetricKey(raw []byte) (*SymmetricKey, error) {
	if len(raw) != SymmetricKeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeySize, SymmetricKeySize, len(raw))
	}
	return &SymmetricKey{enclave: memguard.NewEnclave(raw)}, nil
}

// Use opens the enclave and passes the raw key to fn. The slice is only
// valid for the duration of fn and must not be retained.
func (k *SymmetricKey) Use(fn func(raw []byte) error) error {
	return useEnclave(k.enclave, fn)
}

// RawKeyMaterial returns a heap copy of the key bytes.
//
// Hazardous material: the caller owns the copy and must wipe it. Prefer Use.
func (k *SymmetricKey) RawKeyMaterial() ([]byte, error) {
	return copyEnclave(k.enclave)
}

func (k *SymmetricKey) String() string   { return "keys.SymmetricKey{" + redacted + "}" }
func (k *SymmetricKey) GoString() string { return k.String() }

func (k *SymmetricKey) MarshalJSON() ([]byte, error) { return nil, ErrNotMarshalable }
func (k *SymmetricKey) MarshalText() ([]byte, error) { return nil, ErrNotMarshalable }

func useEnclave(e *memguard.Enclave, fn func(raw []byte) error) error {
	if e == nil {
		return ErrInvalidKeySize
	}
	lb, err := e.Open()
	if err != nil {
		return fmt.Errorf("keys: opening enclave: %w", err)
	}
	defer lb.Destroy()
	return fn(lb.Bytes())
}

func copyEnclave(e *memguard.Enclave) ([]byte, error) {
	var out []byte
	err := useEnclave(e, func(raw []byte) error {
		out = make([]byte, len(raw))
		copy(out, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
