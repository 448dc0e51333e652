package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Encryptor is an AES-256-GCM helper for small secrets at rest
// (two-factor seeds). Blobs are nonce-prefixed.
type Encryptor struct {
	aead cipher.AEAD
}

func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: aead}, nil
}

func NewEncryptorFromString(key string) (*Encryptor, error) {
	k, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	return NewEncryptor(k)
}

func decodeKey(k string) ([]byte, error) {
	if len(k) == 32 {
		return []byte(k), nil
	}
	if len(k) == 64 {
		if b, err := hex.DecodeString(k); err == nil {
			return b, nil
		}
	}
	if b, err := base64.StdEncoding.DecodeString(k); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(k); err == nil {
		return b, nil
	}
	return nil, errors.New("invalid encryption key format")
}

func (e *Encryptor) EncryptToBlob(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *Encryptor) DecryptBlob(data []byte) ([]byte, error) {
	ns := e.aead.NonceSize()
	if len(data) < ns {
		return nil, errors.New("ciphertext too short")
	}
	return e.aead.Open(nil, data[:ns], data[ns:], nil)
}
