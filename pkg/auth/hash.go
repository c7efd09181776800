package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt work factor used for new password hashes.
// Verification reads the cost from the stored hash, so raising it later does
// not invalidate existing credentials.
const DefaultBcryptCost = 10

// PasswordHasher performs one-way salted hashing and constant-time comparison
// of credentials using bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a password hasher with the given bcrypt cost.
// A cost of 0 selects DefaultBcryptCost.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return PasswordHasher{cost: cost}
}

// Hash produces a salted bcrypt hash of the plaintext password.
func (h PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether the plaintext password matches the stored hash.
// bcrypt's comparison is constant-time with respect to the password.
func (h PasswordHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
