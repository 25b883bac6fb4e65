package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost factor used for admin key hashing
const DefaultCost = bcrypt.DefaultCost

// HashAPIKey generates a bcrypt hash suitable for http.admin_api_key
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// IsBcryptHash reports whether a configured key is stored as a bcrypt hash
func IsBcryptHash(configured string) bool {
	return strings.HasPrefix(configured, "$2a$") ||
		strings.HasPrefix(configured, "$2b$") ||
		strings.HasPrefix(configured, "$2y$")
}

// CheckAPIKey compares a provided key against the configured value, which is
// either a bcrypt hash or the plaintext key.
func CheckAPIKey(provided, configured string) bool {
	if provided == "" || configured == "" {
		return false
	}
	if IsBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(provided)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}
