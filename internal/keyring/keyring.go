// Package keyring loads the process keys from a JSON document.
//
// The document carries three hex-encoded keys, all mandatory:
//
//	{
//	  "secret-key": "<64-byte Ed25519 private key>",
//	  "public-key": "<32-byte Ed25519 public key>",
//	  "shared-key": "<32-byte symmetric root key>"
//	}
//
// Keys are loaded once at startup and live for the lifetime of the process.
package keyring

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/filex"
	"github.com/dmitrijs2005/denauth/internal/keys"
)

type Keyring struct {
	SecretKey *keys.AsymmetricSecretKey
	PublicKey *keys.AsymmetricPublicKey
	SharedKey *keys.SymmetricKey
}

type document struct {
	SecretKey string `json:"secret-key"`
	PublicKey string `json:"public-key"`
	SharedKey string `json:"shared-key"`
}

// Generate creates a keyring with fresh random keys.
func Generate() (*Keyring, error) {
	sk, err := keys.GenerateAsymmetricSecretKey()
	if err != nil {
		return nil, err
	}
	shared, err := keys.GenerateSymmetricKey()
	if err != nil {
		return nil, err
	}
	return &Keyring{SecretKey: sk, PublicKey: sk.PublicKey(), SharedKey: shared}, nil
}

// Parse decodes a keyring document. A missing key yields
// common.ErrKeyringIncomplete; a public key that is not the one derived from
// the secret key yields common.ErrKeyMismatch.
func Parse(data []byte) (*Keyring, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("keyring: decode: %w", err)
	}
	if doc.SecretKey == "" || doc.PublicKey == "" || doc.SharedKey == "" {
		return nil, common.ErrKeyringIncomplete
	}

	pubRaw, err := hex.DecodeString(doc.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keyring: public-key: %w", err)
	}
	pk, err := keys.NewAsymmetricPublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("keyring: public-key: %w", err)
	}

	skRaw, err := hex.DecodeString(doc.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("keyring: secret-key: %w", err)
	}
	sk, err := keys.NewAsymmetricSecretKey(skRaw, pk)
	if err != nil {
		return nil, fmt.Errorf("keyring: secret-key: %w", err)
	}
	derived, err := sk.DerivedPublicKey()
	if err != nil {
		return nil, fmt.Errorf("keyring: secret-key: %w", err)
	}
	if !derived.Equal(pk) {
		return nil, common.ErrKeyMismatch
	}

	sharedRaw, err := hex.DecodeString(doc.SharedKey)
	if err != nil {
		return nil, fmt.Errorf("keyring: shared-key: %w", err)
	}
	shared, err := keys.NewSymmetricKey(sharedRaw)
	if err != nil {
		return nil, fmt.Errorf("keyring: shared-key: %w", err)
	}

	return &Keyring{SecretKey: sk, PublicKey: pk, SharedKey: shared}, nil
}

// Encode serializes the keyring. The result holds raw key material and must
// only be written to owner-only storage.
func (k *Keyring) Encode() ([]byte, error) {
	skRaw, err := k.SecretKey.RawKeyMaterial()
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(skRaw)

	sharedRaw, err := k.SharedKey.RawKeyMaterial()
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(sharedRaw)

	return json.MarshalIndent(document{
		SecretKey: hex.EncodeToString(skRaw),
		PublicKey: hex.EncodeToString(k.PublicKey.RawKeyMaterial()),
		SharedKey: hex.EncodeToString(sharedRaw),
	}, "", "  ")
}

// LoadFile reads and parses the keyring at path.
func LoadFile(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyring: %w", err)
	}
	defer memguard.WipeBytes(data)
	return Parse(data)
}

// WriteFile stores the keyring at path with mode 0600.
func (k *Keyring) WriteFile(path string, overwrite bool) error {
	data, err := k.Encode()
	if err != nil {
		return err
	}
	defer memguard.WipeBytes(data)
	return filex.WriteSecretFile(path, data, overwrite)
}
