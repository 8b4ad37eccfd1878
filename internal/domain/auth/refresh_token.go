package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// refreshTokenBytes is the amount of randomness backing an opaque refresh
// token before base64url encoding.
const refreshTokenBytes = 32

// GenerateRefreshToken returns a fresh opaque refresh token: 32
// cryptographically random bytes, base64url-no-pad encoded. The plaintext
// is handed to the client and never persisted.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshToken computes the SHA-256 digest stored in place of the
// plaintext token, used both to persist a new record and to look one up
// by a presented token.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
