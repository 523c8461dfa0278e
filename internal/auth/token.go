package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashToken returns the lowercase hex SHA-256 digest stored for credentials.
func HashToken(token string) string {
	hasher := sha256.New()
	hasher.Write([]byte(token))
	return hex.EncodeToString(hasher.Sum(nil))
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
