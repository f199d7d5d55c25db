package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// KeySealer encrypts signing key material at rest with AES-256-GCM.
// Sealed output is laid out as [12-byte nonce][ciphertext][16-byte tag].
type KeySealer struct {
	aead cipher.AEAD
}

// NewKeySealer derives a 32-byte AES key from arbitrary key material.
func NewKeySealer(material []byte) (*KeySealer, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty master key material")
	}
	key := sha256.Sum256(material)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &KeySealer{aead: aead}, nil
}

// LoadKeySealer builds a KeySealer from the file at path, or from the
// fallback value when path is empty.
func LoadKeySealer(path, fallback string) (*KeySealer, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: read master key file: %w", err)
		}
		return NewKeySealer(data)
	}
	return NewKeySealer([]byte(fallback))
}

// Seal encrypts and authenticates plaintext with a fresh random nonce.
func (s *KeySealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. Tampered or foreign ciphertexts fail authentication.
func (s *KeySealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("cryptox: ciphertext too short")
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}
