package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// deriveKey hashes the operator-supplied secret down to a 32-byte AES key.
// The secret itself is never written anywhere.
func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// encrypt seals plaintext with AES-256-GCM under a key derived from secret.
// A fresh random nonce is generated per call and prepended to the sealed
// blob; nonce reuse under a fixed key would void the cipher's guarantees.
func encrypt(secret string, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens a blob produced by encrypt. A failed authentication tag
// (tampered ciphertext or a different secret) surfaces as ErrIntegrity.
func decrypt(secret string, blob []byte) ([]byte, error) {
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("blob shorter than nonce: %w", ErrIntegrity)
	}

	plaintext, err := gcm.Open(nil, blob[:gcm.NonceSize()], blob[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed (wrong secret or tampered data): %w", ErrIntegrity)
	}
	return plaintext, nil
}
