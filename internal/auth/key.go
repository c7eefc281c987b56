// Package auth guards the webhook endpoints with a shared API key.
//
// The key is compared as a static string. Vonage signed-webhook JWTs are
// not verified, so the guard belongs behind a proxy or gateway that adds
// the key, and stays disabled for traffic straight from Vonage.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// HeaderAPIKey is the header the key may be sent in.
const HeaderAPIKey = "X-API-Key"

// ValidateKey performs timing-safe comparison of the provided key
// against the expected key. Returns true if they match.
func ValidateKey(provided, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// KeyFromRequest extracts the key from X-API-Key or, failing that, from a
// Bearer Authorization header. It returns "" when neither is present.
func KeyFromRequest(r *http.Request) string {
	if k := r.Header.Get(HeaderAPIKey); k != "" {
		return k
	}
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}
