package cryptox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/denauth/internal/common"
	"github.com/dmitrijs2005/denauth/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *keys.SymmetricKey {
	t.Helper()
	k, err := keys.GenerateSymmetricKey()
	require.NoError(t, err)
	return k
}

func fixedKey(t *testing.T) *keys.SymmetricKey {
	t.Helper()
	raw := make([]byte, keys.SymmetricKeySize)
	for i := range raw {
		raw[i] = byte(i)
	}
	k, err := keys.NewSymmetricKey(raw)
	require.NoError(t, err)
	return k
}

func TestEncryptDecrypt_HelloScenario(t *testing.T) {
	k := newKey(t)
	k2 := newKey(t)

	ct, err := Encrypt([]byte("hello"), k)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "furry100"))

	pt, err := Decrypt(ct, k)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))

	_, err = Decrypt(ct, k2)
	require.ErrorIs(t, err, common.ErrCrypto)
}

func TestEncryptWithAD_Roundtrip(t *testing.T) {
	k := newKey(t)

	tests := []struct {
		name string
		pt   []byte
		ad   []byte
	}{
		{"empty plaintext no ad", []byte{}, nil},
		{"text with ad", []byte("two-factor seed"), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"binary", bytes.Repeat([]byte{0x00, 0xff}, 512), []byte("owner")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := EncryptWithAD(tt.pt, k, tt.ad)
			require.NoError(t, err)

			got, err := DecryptWithAD(ct, k, tt.ad)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.pt, got))
		})
	}
}

func TestEncrypt_EmptyPlaintextHasMinimumBody(t *testing.T) {
	k := newKey(t)
	ct, err := Encrypt(nil, k)
	require.NoError(t, err)

	decoded, err := base64.URLEncoding.DecodeString(ct[HeaderSize:])
	require.NoError(t, err)
	assert.Len(t, decoded, MinDecodedSize)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	k := newKey(t)
	a, err := Encrypt([]byte("same"), k)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same"), k)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptWithAD_WrongADFails(t *testing.T) {
	k := newKey(t)
	ct, err := EncryptWithAD([]byte("secret"), k, []byte("user-1"))
	require.NoError(t, err)

	_, err = DecryptWithAD(ct, k, []byte("user-2"))
	require.ErrorIs(t, err, common.ErrCrypto)

	_, err = Decrypt(ct, k)
	require.ErrorIs(t, err, common.ErrCrypto)
}

func TestDecrypt_EverySingleBitFlipFails(t *testing.T) {
	k := newKey(t)
	ct, err := EncryptWithAD([]byte("flip me"), k, []byte("ad"))
	require.NoError(t, err)

	for i := 0; i < len(ct); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := []byte(ct)
			mutated[i] ^= 1 << bit
			_, err := DecryptWithAD(string(mutated), k, []byte("ad"))
			if !errors.Is(err, common.ErrCrypto) {
				t.Fatalf("flip at byte %d bit %d: want ErrCrypto, got %v", i, bit, err)
			}
		}
	}
}

func TestDecrypt_UnknownHeaderFails(t *testing.T) {
	k := newKey(t)
	ct, err := Encrypt([]byte("hello"), k)
	require.NoError(t, err)

	for _, h := range []string{"furry101", "FURRY100", "xxxxxxxx"} {
		_, err := Decrypt(h+ct[HeaderSize:], k)
		require.ErrorIs(t, err, common.ErrCrypto, h)
	}
}

func TestDecrypt_MalformedInputs(t *testing.T) {
	k := newKey(t)
	short := Header + base64.URLEncoding.EncodeToString(make([]byte, MinDecodedSize-1))

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"shorter than header", "furry"},
		{"header only", Header},
		{"bad base64", Header + "!!!!"},
		{"decoded too short", short},
		{"truncated", func() string {
			ct, _ := Encrypt([]byte("hello"), k)
			return ct[:len(ct)-4]
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.in, k)
			require.ErrorIs(t, err, common.ErrCrypto)
		})
	}
}

func TestDecrypt_ErrorsAreIndistinguishable(t *testing.T) {
	k := newKey(t)
	other := newKey(t)
	ct, err := Encrypt([]byte("hello"), other)
	require.NoError(t, err)

	_, errHeader := Decrypt("zzzzzzzz"+ct[HeaderSize:], k)
	_, errShort := Decrypt("abc", k)
	_, errAuth := Decrypt(ct, k)

	require.Error(t, errHeader)
	assert.Equal(t, errHeader.Error(), errShort.Error())
	assert.Equal(t, errHeader.Error(), errAuth.Error())
	assert.Equal(t, common.ErrCrypto.Error(), errAuth.Error())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestEncrypt_RandomSourceFailure(t *testing.T) {
	orig := randReader
	randReader = failingReader{}
	t.Cleanup(func() { randReader = orig })

	_, err := Encrypt([]byte("x"), newKey(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrCrypto))
}

func TestAllowedHeaders_IsCopy(t *testing.T) {
	h := AllowedHeaders()
	require.Equal(t, []string{"furry100"}, h)
	h[0] = "mutated!"
	assert.Equal(t, []string{"furry100"}, AllowedHeaders())
}
