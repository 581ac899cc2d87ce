package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// AsymmetricPublicKey is an Ed25519 public key. It is not secret, but it
// shares the accessor surface of the secret types.
type AsymmetricPublicKey struct {
	key ed25519.PublicKey
}

// NewAsymmetricPublicKey copies raw into a new public key.
func NewAsymmetricPublicKey(raw []byte) (*AsymmetricPublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeySize, ed25519.PublicKeySize, len(raw))
	}
	pk := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pk, raw)
	return &AsymmetricPublicKey{key: pk}, nil
}

// RawKeyMaterial returns a copy of the public key bytes.
func (p *AsymmetricPublicKey) RawKeyMaterial() []byte {
	out := make([]byte, len(p.key))
	copy(out, p.key)
	return out
}

// Equal reports whether p and o hold the same key, in constant time.
func (p *AsymmetricPublicKey) Equal(o *AsymmetricPublicKey) bool {
	if p == nil || o == nil {
		return false
	}
	return subtle.ConstantTimeCompare(p.key, o.key) == 1
}

// Verify checks an Ed25519 signature over msg.
func (p *AsymmetricPublicKey) Verify(msg, sig []byte) bool {
	return ed25519.Verify(p.key, msg, sig)
}

// AsymmetricSecretKey is an Ed25519 signing key and its public half.
type AsymmetricSecretKey struct {
	enclave *memguard.Enclave
	public  *AsymmetricPublicKey
}

// GenerateAsymmetricSecretKey creates a new keypair from crypto/rand.
func GenerateAsymmetricSecretKey() (*AsymmetricSecretKey, error) {
	return GenerateAsymmetricSecretKeyFrom(rand.Reader)
}

// GenerateAsymmetricSecretKeyFrom creates a new keypair from r.
func GenerateAsymmetricSecretKeyFrom(r io.Reader) (*AsymmetricSecretKey, error) {
	pub, sk, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("keys: generating keypair: %w", err)
	}
	pk, err := NewAsymmetricPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return NewAsymmetricSecretKey(sk, pk)
}

// NewAsymmetricSecretKey seals a 64-byte Ed25519 private key. When pk is nil
// the public key is derived from the secret key. raw is wiped on return.
func NewAsymmetricSecretKey(raw []byte, pk *AsymmetricPublicKey) (*AsymmetricSecretKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeySize, ed25519.PrivateKeySize, len(raw))
	}
	if pk == nil {
		derived, err := NewAsymmetricPublicKey(ed25519.PrivateKey(raw).Public().(ed25519.PublicKey))
		if err != nil {
			memguard.WipeBytes(raw)
			return nil, err
		}
		pk = derived
	}
	return &AsymmetricSecretKey{enclave: memguard.NewEnclave(raw), public: pk}, nil
}

// PublicKey returns the public half of the keypair.
func (s *AsymmetricSecretKey) PublicKey() *AsymmetricPublicKey {
	return s.public
}

// DerivedPublicKey recomputes the public key from the secret material,
// ignoring whatever public key the keypair was constructed with.
func (s *AsymmetricSecretKey) DerivedPublicKey() (*AsymmetricPublicKey, error) {
	var pk *AsymmetricPublicKey
	err := useEnclave(s.enclave, func(raw []byte) error {
		var err error
		pk, err = NewAsymmetricPublicKey(ed25519.PrivateKey(raw).Public().(ed25519.PublicKey))
		return err
	})
	return pk, err
}

// Sign produces an Ed25519 signature over msg.
func (s *AsymmetricSecretKey) Sign(msg []byte) ([]byte, error) {
	var sig []byte
	err := useEnclave(s.enclave, func(raw []byte) error {
		sig = ed25519.Sign(ed25519.PrivateKey(raw), msg)
		return nil
	})
	return sig, err
}

// RawKeyMaterial returns a heap copy of the 64-byte private key.
//
// Hazardous material: the caller owns the copy and must wipe it.
func (s *AsymmetricSecretKey) RawKeyMaterial() ([]byte, error) {
	return copyEnclave(s.enclave)
}

func (s *AsymmetricSecretKey) String() string   { return "keys.AsymmetricSecretKey{" + redacted + "}" }
func (s *AsymmetricSecretKey) GoString() string { return s.String() }

func (s *AsymmetricSecretKey) MarshalJSON() ([]byte, error) { return nil, ErrNotMarshalable }
func (s *AsymmetricSecretKey) MarshalText() ([]byte, error) { return nil, ErrNotMarshalable }
