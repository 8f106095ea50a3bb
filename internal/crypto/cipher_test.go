package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func testKey(b byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{b}, 32))
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(0x01))
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	plaintext := "BQDh...very-secret-access-token"
	sealed, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if sealed == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got != plaintext {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestCipher_RandomNonce(t *testing.T) {
	c, _ := NewCipher(testKey(0x01))

	a, _ := c.Encrypt("same input")
	b, _ := c.Encrypt("same input")
	if a == b {
		t.Error("two encryptions of the same input produced identical ciphertext")
	}
}

func TestCipher_WrongKeyFails(t *testing.T) {
	c1, _ := NewCipher(testKey(0x01))
	c2, _ := NewCipher(testKey(0x02))

	sealed, _ := c1.Encrypt("secret")
	if _, err := c2.Decrypt(sealed); err == nil {
		t.Error("decryption succeeded with the wrong key")
	}
}

func TestCipher_InvalidInputs(t *testing.T) {
	if _, err := NewCipher("not-base64!!"); err == nil {
		t.Error("NewCipher accepted a non-base64 key")
	}
	if _, err := NewCipher(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("NewCipher accepted a short key")
	}

	c, _ := NewCipher(testKey(0x01))
	if _, err := c.Decrypt("%%%"); err == nil {
		t.Error("Decrypt accepted invalid encoding")
	}
	if _, err := c.Decrypt(base64.StdEncoding.EncodeToString([]byte("x"))); err == nil {
		t.Error("Decrypt accepted a truncated ciphertext")
	}
}
