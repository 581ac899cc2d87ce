// Package common defines shared constants, sentinel errors and small random
// helpers used across denauth components. Callers should use errors.Is to
// match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrCrypto covers every ciphertext rejection: bad header, short input,
	// undecodable body and authentication failure all map to this one value.
	ErrCrypto = errors.New("crypto: invalid ciphertext")

	// ErrNoSuchToken is returned when a selector/validator token does not
	// match any live row.
	ErrNoSuchToken = errors.New("no such token")

	// ErrNoSuchUser is returned when a lookup by username or ID fails.
	ErrNoSuchUser = errors.New("no such user")

	// ErrRaceCondition signals that a password or two-factor secret was set
	// on a user record that has not been persisted yet (ID == 0).
	ErrRaceCondition = errors.New("race condition: user record has no persisted id")

	// ErrSecurity is a caller-level policy violation, e.g. a missing pending
	// two-factor secret or a wrong one-time code.
	ErrSecurity = errors.New("security policy violation")

	// Keyring errors.
	ErrKeyringIncomplete = errors.New("mandatory keys are not defined in keyring")
	ErrKeyMismatch       = errors.New("public key does not match secret key")
)
