package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	goerrors "github.com/agilira/go-errors"
	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/keys"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// HeaderV1 is the current protocol version. The last three digits carry
	// the version number.
	HeaderV1 = "furry100"

	// Header is written on every new ciphertext.
	Header = HeaderV1

	HeaderSize = 8
	NonceSize  = chacha20poly1305.NonceSizeX
	TagSize    = chacha20poly1305.Overhead

	// MinDecodedSize is the shortest decodable body: a nonce and an empty
	// message's tag.
	MinDecodedSize = NonceSize + TagSize
)

// Error codes attached to the rich errors. Every decryption failure uses the
// same code.
const (
	ErrCodeInvalidCiphertext = "CRYPTO_INVALID_CIPHERTEXT"
	ErrCodeRandomSource      = "CRYPTO_RANDOM_SOURCE"
	ErrCodeKey               = "CRYPTO_KEY"
)

// allowedHeaders lists every version this build can decrypt. New versions
// are appended; old ones are never removed.
var allowedHeaders = [...]string{HeaderV1}

// randReader is a seam for the nonce source.
var randReader io.Reader = rand.Reader

var b64 = base64.URLEncoding

// AllowedHeaders returns a copy of the decryptable version headers.
func AllowedHeaders() []string {
	out := make([]string, len(allowedHeaders))
	copy(out, allowedHeaders[:])
	return out
}

func isAllowedHeader(h string) bool {
	for _, a := range allowedHeaders {
		if a == h {
			return true
		}
	}
	return false
}

// Encrypt seals plaintext with no associated data.
func Encrypt(plaintext []byte, key *keys.SymmetricKey) (string, error) {
	return EncryptWithAD(plaintext, key, nil)
}

// Decrypt opens a ciphertext produced by Encrypt.
func Decrypt(encrypted string, key *keys.SymmetricKey) ([]byte, error) {
	return DecryptWithAD(encrypted, key, nil)
}

// EncryptWithAD seals plaintext under key, binding ad. A fresh random nonce
// is drawn for every call.
func EncryptWithAD(plaintext []byte, key *keys.SymmetricKey, ad []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeRandomSource, "failed to generate nonce")
		return "", fmt.Errorf("cryptox: %w", richErr)
	}

	var sealed []byte
	err := key.Use(func(raw []byte) error {
		aead, err := chacha20poly1305.NewX(raw)
		if err != nil {
			return err
		}
		// nonce || ciphertext in one buffer
		sealed = aead.Seal(nonce, nonce, plaintext, additionalData(Header, nonce, ad))
		return nil
	})
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeKey, "failed to initialise cipher")
		return "", fmt.Errorf("cryptox: %w", richErr)
	}

	return Header + b64.EncodeToString(sealed), nil
}

// DecryptWithAD opens encrypted under key, requiring the same ad that was
// used for encryption. The checks run in order: minimum length, header
// allow-list, minimum decoded length, AEAD verification.
func DecryptWithAD(encrypted string, key *keys.SymmetricKey, ad []byte) ([]byte, error) {
	if len(encrypted) < HeaderSize {
		return nil, invalidCiphertext(nil)
	}
	header := encrypted[:HeaderSize]
	if !isAllowedHeader(header) {
		return nil, invalidCiphertext(nil)
	}
	decoded, err := b64.Strict().DecodeString(encrypted[HeaderSize:])
	if err != nil {
		return nil, invalidCiphertext(err)
	}
	if len(decoded) < MinDecodedSize {
		return nil, invalidCiphertext(nil)
	}
	nonce, body := decoded[:NonceSize], decoded[NonceSize:]

	var plaintext []byte
	err = key.Use(func(raw []byte) error {
		aead, err := chacha20poly1305.NewX(raw)
		if err != nil {
			return err
		}
		plaintext, err = aead.Open(nil, nonce, body, additionalData(header, nonce, ad))
		return err
	})
	if err != nil {
		return nil, invalidCiphertext(err)
	}
	return plaintext, nil
}

func additionalData(header string, nonce, ad []byte) []byte {
	out := make([]byte, 0, len(header)+len(nonce)+len(ad))
	out = append(out, header...)
	out = append(out, nonce...)
	return append(out, ad...)
}

// invalidCiphertext builds the single error returned for every rejected
// input. cause is kept for errors.Unwrap chains but never shown.
func invalidCiphertext(cause error) error {
	var richErr error
	if cause != nil {
		richErr = goerrors.Wrap(cause, ErrCodeInvalidCiphertext, "invalid ciphertext")
	} else {
		richErr = goerrors.New(ErrCodeInvalidCiphertext, "invalid ciphertext")
	}
	return &cryptoError{rich: richErr}
}

// cryptoError prints only the generic sentinel text so the failing check
// does not surface in logs or responses.
type cryptoError struct {
	rich error
}

func (e *cryptoError) Error() string { return common.ErrCrypto.Error() }

func (e *cryptoError) Is(target error) bool { return target == common.ErrCrypto }

func (e *cryptoError) Unwrap() error { return e.rich }
