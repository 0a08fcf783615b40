package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"decorbook/internal/api"
	"decorbook/internal/apperr"
)

const BridgeHeader = "X-Auth-Bridge-Secret"

// VerifyBridgeSecret compares in constant time. An empty configured secret never matches.
func VerifyBridgeSecret(given, secret string) bool {
	given = strings.TrimSpace(given)
	if given == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

// RequireBridge guards token issuance so only the identity provider bridge can mint sessions.
// When required is false (dev) requests pass through untouched.
func RequireBridge(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if required && !VerifyBridgeSecret(r.Header.Get(BridgeHeader), secret) {
				api.WriteError(w, http.StatusUnauthorized, string(apperr.KindUnauthorized), "invalid bridge secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
