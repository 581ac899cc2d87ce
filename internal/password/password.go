// Package password hashes account passwords with Argon2id and seals the
// resulting PHC string with the authenticated cipher. Both the KDF salt and
// the cipher's associated data include a per-owner context, so a hash copied
// into another account row never verifies.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/denauth/internal/cryptox"
	"github.com/dmitrijs2005/denauth/internal/keys"
	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultParams: t=3, m=64 MiB, p=4, 32-byte key, 16-byte salt.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

var ErrMalformedHash = errors.New("password: malformed hash")

var phc = base64.RawStdEncoding

// Hasher binds the Argon2 parameters to the key used for sealing hashes.
type Hasher struct {
	key    *keys.SymmetricKey
	params Params
	rand   io.Reader
}

type Option func(*Hasher)

// WithParams overrides the cost parameters. Tests use it to keep Argon2 fast.
func WithParams(p Params) Option {
	return func(h *Hasher) { h.params = p }
}

// WithRand replaces crypto/rand as the salt source.
func WithRand(r io.Reader) Option {
	return func(h *Hasher) { h.rand = r }
}

func NewHasher(key *keys.SymmetricKey, opts ...Option) *Hasher {
	h := &Hasher{key: key, params: DefaultParams, rand: rand.Reader}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Hash derives an Argon2id hash of password with ctx folded into the salt and
// returns it sealed under AD = ctx.
func (h *Hasher) Hash(password, ctx []byte) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("password: reading salt: %w", err)
	}

	sum := h.derive(password, salt, ctx, h.params)
	encoded := encodePHC(h.params, salt, sum)

	sealed, err := cryptox.EncryptWithAD([]byte(encoded), h.key, ctx)
	if err != nil {
		return "", err
	}
	return sealed, nil
}

// Verify reports whether password matches stored for the owner described by
// ctx. Any failure (wrong owner, tampered ciphertext, malformed PHC string)
// yields false.
func (h *Hasher) Verify(password []byte, stored string, ctx []byte) bool {
	plain, err := cryptox.DecryptWithAD(stored, h.key, ctx)
	if err != nil {
		return false
	}

	p, salt, want, err := decodePHC(string(plain))
	if err != nil {
		return false
	}

	got := h.derive(password, salt, ctx, p)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash reports whether stored was produced with parameters other than
// the hasher's current ones. Undecryptable input needs a rehash too.
func (h *Hasher) NeedsRehash(stored string, ctx []byte) bool {
	plain, err := cryptox.DecryptWithAD(stored, h.key, ctx)
	if err != nil {
		return true
	}
	p, _, _, err := decodePHC(string(plain))
	if err != nil {
		return true
	}
	return p != h.params
}

func (h *Hasher) derive(password, salt, ctx []byte, p Params) []byte {
	input := make([]byte, 0, len(salt)+len(ctx))
	input = append(input, salt...)
	input = append(input, ctx...)
	return argon2.IDKey(password, input, p.Time, p.Memory, p.Threads, p.KeyLen)
}

func encodePHC(p Params, salt, sum []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		phc.EncodeToString(salt), phc.EncodeToString(sum))
}

func decodePHC(s string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(s, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := phc.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	sum, err := phc.Strict().DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(sum))
	return p, salt, sum, nil
}
