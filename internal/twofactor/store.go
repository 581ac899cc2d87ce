// Package twofactor keeps TOTP seeds encrypted at rest, bound to the owning
// user's ID, and wraps enrollment and code checks around pquerna/otp.
package twofactor

import (
	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/cryptox"
	"github.com/dmitrijs2005/denauth/internal/keys"
)

// Store seals and opens two-factor secrets. The associated data is the
// little-endian owner ID, so a blob copied to another row fails to open.
type Store struct {
	key *keys.SymmetricKey
}

func NewStore(key *keys.SymmetricKey) *Store {
	return &Store{key: key}
}

// Seal encrypts secret for userID. userID must already be persisted.
func (s *Store) Seal(secret []byte, userID int64) (string, error) {
	if userID == 0 {
		return "", common.ErrRaceCondition
	}
	return cryptox.EncryptWithAD(secret, s.key, common.OwnerContext(userID))
}

// Open decrypts a blob produced by Seal for the same userID. Any mismatch
// fails with an error matching common.ErrCrypto.
func (s *Store) Open(blob string, userID int64) ([]byte, error) {
	if userID == 0 {
		return nil, common.ErrRaceCondition
	}
	return cryptox.DecryptWithAD(blob, s.key, common.OwnerContext(userID))
}
