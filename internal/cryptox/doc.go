// Package cryptox implements the symmetric primitives of the authentication
// layer: a versioned XChaCha20-Poly1305 envelope and a domain-separated MAC.
//
// Ciphertext wire format:
//
//	HEADER (8 ASCII bytes) || base64url( nonce (24 bytes) || aead ciphertext )
//
// The header and nonce are authenticated together with the caller's
// associated data, so neither can be swapped without failing decryption.
// All decryption failures return an error matching common.ErrCrypto and
// carry the same rich error code.
package cryptox
