package cryptox

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/denauth/internal/keys"
	"golang.org/x/crypto/blake2b"
)

// AuthDomainSeparation is the BLAKE2b key used to derive the MAC sub-key
// from the root symmetric key.
const AuthDomainSeparation = "S0470K::domain-separation4authKz"

// MACSize is the length of a raw MAC (HMAC-SHA-512 truncated to 256 bits).
const MACSize = 32

// Auth returns the hex-encoded MAC of message.
func Auth(message []byte, key *keys.SymmetricKey) (string, error) {
	mac, err := AuthRaw(message, key)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac), nil
}

// AuthRaw returns the raw MAC of message. The sub-key is derived on every
// call and wiped afterwards.
func AuthRaw(message []byte, key *keys.SymmetricKey) ([]byte, error) {
	var mac []byte
	err := key.Use(func(raw []byte) error {
		subKey, err := authSubKey(raw)
		if err != nil {
			return err
		}
		defer memguard.WipeBytes(subKey)

		h := hmac.New(sha512.New, subKey)
		h.Write(message)
		mac = h.Sum(nil)[:MACSize]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cryptox: computing mac: %w", err)
	}
	return mac, nil
}

// Verify checks a hex-encoded MAC. Malformed hex verifies as false.
func Verify(message []byte, key *keys.SymmetricKey, macHex string) (bool, error) {
	mac, err := hex.DecodeString(macHex)
	if err != nil {
		return false, nil
	}
	return VerifyRaw(message, key, mac)
}

// VerifyRaw checks a raw MAC in constant time.
func VerifyRaw(message []byte, key *keys.SymmetricKey, mac []byte) (bool, error) {
	calc, err := AuthRaw(message, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(calc, mac), nil
}

func authSubKey(root []byte) ([]byte, error) {
	h, err := blake2b.New256([]byte(AuthDomainSeparation))
	if err != nil {
		return nil, err
	}
	h.Write(root)
	return h.Sum(nil), nil
}
