package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is used when no explicit cost is configured.
	DefaultBcryptCost = 10
)

// BcryptVerifier hashes and checks credentials with bcrypt.
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier creates a verifier; a cost outside bcrypt's range falls back to DefaultBcryptCost.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptVerifier{cost: cost}
}

// Hash generates a bcrypt hash of the credential.
func (v *BcryptVerifier) Hash(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether provided matches the stored bcrypt hash.
func (v *BcryptVerifier) Verify(stored, provided string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)) == nil
}
