package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// PasswordHash holds the argon2id digest and its salt, both
// base64-RawStd encoded for storage in text columns.
type PasswordHash struct {
	Hash string
	Salt string
}

func HashPassword(password, pepper string) (*PasswordHash, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := derivePasswordKey(password, pepper, salt)
	return &PasswordHash{
		Hash: base64.RawStdEncoding.EncodeToString(key),
		Salt: base64.RawStdEncoding.EncodeToString(salt),
	}, nil
}

func VerifyPassword(password, pepper string, stored *PasswordHash) (bool, error) {
	if stored == nil {
		return false, errors.New("nil password hash")
	}
	salt, err := base64.RawStdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return false, err
	}
	expected, err := base64.RawStdEncoding.DecodeString(stored.Hash)
	if err != nil {
		return false, err
	}
	key := derivePasswordKey(password, pepper, salt)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func derivePasswordKey(password, pepper string, salt []byte) []byte {
	input := make([]byte, 0, len(password)+len(pepper))
	input = append(input, password...)
	input = append(input, pepper...)
	return argon2.IDKey(input, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func MustHashPassword(password, pepper string) *PasswordHash {
	p, err := HashPassword(password, pepper)
	if err != nil {
		panic(err)
	}
	return p
}

func ParsePasswordHash(hash, salt string) (*PasswordHash, error) {
	if hash == "" || salt == "" {
		return nil, errors.New("empty hash or salt")
	}
	return &PasswordHash{Hash: hash, Salt: salt}, nil
}
