package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	mathrand "math/rand"
)

const (
	// MinVerifyTokenLen and MaxVerifyTokenLen bound the per-login random token.
	MinVerifyTokenLen = 4
	MaxVerifyTokenLen = 32
)

// GenerateVerifyToken returns 4..32 fresh random bytes for one login attempt.
func GenerateVerifyToken() ([]byte, error) {
	n := MinVerifyTokenLen + mathrand.Intn(MaxVerifyTokenLen-MinVerifyTokenLen+1)
	token := make([]byte, n)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("generating verify token: %w", err)
	}
	return token, nil
}

// VerifyTokenMatch compares the echoed token against the issued one
// byte-for-byte in constant time.
func VerifyTokenMatch(expected, actual []byte) bool {
	return subtle.ConstantTimeCompare(expected, actual) == 1
}
