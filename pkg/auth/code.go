package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin  = 100000
	codeSpan = 900000 // codes are uniform in [100000, 999999]
)

// GenerateCode produces a uniformly random 6-digit verification code using a
// cryptographically secure source. The result is a fixed-width string; the
// range never produces a value that would drop a leading digit.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
