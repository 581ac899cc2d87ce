package common

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

// ---------- MakeRandBase64URLString ----------

func TestMakeRandBase64URLString_Length(t *testing.T) {
	s, err := MakeRandBase64URLString(rand.Reader, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 24 {
		t.Fatalf("expected 24 chars, got %d (%q)", len(s), s)
	}
	if strings.ContainsAny(s, "+/=") {
		t.Fatalf("expected url-safe alphabet without padding, got %q", s)
	}
}

func TestMakeRandBase64URLString_ShortReader(t *testing.T) {
	_, err := MakeRandBase64URLString(bytes.NewReader([]byte{1, 2, 3}), 18)
	if err == nil {
		t.Fatalf("expected error from short reader")
	}
}

func TestOwnerContext_LittleEndian(t *testing.T) {
	got := OwnerContext(0x0102030405060708)
	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("OwnerContext = %x, want %x", got, want)
	}
	if !bytes.Equal(OwnerContext(1), []byte{1, 0, 0, 0, 0, 0, 0, 0}) {
		t.Fatalf("OwnerContext(1) = %x", OwnerContext(1))
	}
}
