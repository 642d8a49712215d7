// Package cryptobox provides AES-256-GCM authenticated encryption for
// credentials at rest (database passwords, SMTP passwords).
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/onbao165/webmonitor/internal/types"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Box encrypts and decrypts secrets with a single 256-bit key.
type Box struct {
	key []byte
}

// NewBox builds a Box from a 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Box{key: key}, nil
}

// GenerateKey returns a fresh random 32-byte key, for first-use provisioning.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt returns the base64 encoding of a nonce-prepended AES-256-GCM
// ciphertext of plaintext.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := b.gcm()
	if err != nil {
		return "", &types.CryptoError{Op: "encrypt", Err: err}
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &types.CryptoError{Op: "encrypt", Err: fmt.Errorf("failed to generate nonce: %w", err)}
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Callers that hit a CryptoError should, per the
// error handling design, log it and treat the credential as empty rather
// than propagate it.
func (b *Box) Decrypt(ciphertextB64 string) (string, error) {
	if ciphertextB64 == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", &types.CryptoError{Op: "decrypt", Err: fmt.Errorf("invalid base64: %w", err)}
	}
	gcm, err := b.gcm()
	if err != nil {
		return "", &types.CryptoError{Op: "decrypt", Err: err}
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", &types.CryptoError{Op: "decrypt", Err: fmt.Errorf("ciphertext too short")}
	}
	nonce, raw := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, raw, nil)
	if err != nil {
		return "", &types.CryptoError{Op: "decrypt", Err: fmt.Errorf("authentication failed: %w", err)}
	}
	return string(plaintext), nil
}

// EncodeKey base64-encodes a raw key for persistence in the config store.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey reverses EncodeKey.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key encoding: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}
