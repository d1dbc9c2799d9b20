package auth

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecretBox encrypts refresh secrets before they are persisted. The nonce is
// synthesized from an HMAC of the plaintext (an SIV-style construction), so
// sealing the same secret always yields the same ciphertext. That determinism
// is load-bearing: the store is queried by the ciphertext of the secret a
// client presents.
type SecretBox struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewSecretBox builds a SecretBox from a 32-byte key.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("auth: cipher key must be %d bytes", chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("warden/refresh-nonce"))
	return &SecretBox{aead: aead, macKey: mac.Sum(nil)}, nil
}

// Seal encrypts the plaintext secret. Output is deterministic per key and
// plaintext.
func (b *SecretBox) Seal(plaintext string) string {
	nonce := b.nonce([]byte(plaintext))
	sealed := b.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(append(nonce, sealed...))
}

// Open decrypts a sealed secret.
func (b *SecretBox) Open(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.New("auth: malformed sealed secret")
	}
	if len(raw) < chacha20poly1305.NonceSize {
		return "", errors.New("auth: sealed secret too short")
	}
	nonce, sealed := raw[:chacha20poly1305.NonceSize], raw[chacha20poly1305.NonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.New("auth: sealed secret failed authentication")
	}
	return string(plaintext), nil
}

func (b *SecretBox) nonce(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, b.macKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:chacha20poly1305.NonceSize]
}
