package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// SessionTokenLength is the number of random bytes in a session token
const SessionTokenLength = 32

// NewSessionToken returns a random URL-safe session token
func NewSessionToken() (string, error) {
	randomBytes := make([]byte, SessionTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// HashToken computes the SHA256 hash of a token. Session records are keyed by
// this hash so a leaked key list does not leak usable tokens.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CredentialsFromRequest extracts the bearer token and the session cookie.
// Signed cookie values ("token.signature") are reduced to the token part.
func CredentialsFromRequest(r *http.Request, cookieName string) Credentials {
	var creds Credentials

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			creds.BearerToken = strings.TrimSpace(parts[1])
		}
	}

	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		value := cookie.Value
		if i := strings.IndexByte(value, '.'); i > 0 {
			value = value[:i]
		}
		creds.SessionToken = value
	}

	return creds
}
