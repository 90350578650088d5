// Package auth guards the HTTP API with a single API key. Only the bcrypt
// hash of the key is kept in memory.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HeaderName carries the API key on HTTP requests.
const HeaderName = "X-API-Key"

// ErrEmptyKey is returned when building a verifier for an empty key.
var ErrEmptyKey = errors.New("api key is empty")

// GenerateAPIKey returns 32 random bytes, base64url encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashPassword hashes a secret with bcrypt's default cost. Secrets over 72
// bytes are rejected by bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// KeyVerifier checks presented keys against one configured API key.
type KeyVerifier struct {
	hash string
}

// NewKeyVerifier hashes key. An empty key is an error; callers that want an
// open API should not build a verifier at all.
func NewKeyVerifier(key string) (*KeyVerifier, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	hash, err := HashPassword(key)
	if err != nil {
		return nil, err
	}
	return &KeyVerifier{hash: hash}, nil
}

// Check reports whether presented matches the configured key.
func (v *KeyVerifier) Check(presented string) bool {
	if presented == "" {
		return false
	}
	return CheckPasswordHash(presented, v.hash)
}
