package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clothai/clothai/internal/api/response"
)

const keyPrefixLen = 8

// Auth validates the static service API key on inbound requests.
type Auth struct {
	apiKey string
}

// NewAuth creates the Auth middleware around the configured service key.
func NewAuth(apiKey string) *Auth {
	return &Auth{apiKey: apiKey}
}

// Authenticate checks the X-API-KEY header against the configured key and
// stamps the rate-limit bucket for the key into the context. The comparison
// is constant-time.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := strings.TrimSpace(r.Header.Get("X-API-KEY"))
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing X-API-KEY header", nil)
			return
		}

		if subtle.ConstantTimeCompare([]byte(rawKey), []byte(a.apiKey)) != 1 {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		ctx := setClientKey(r.Context(), clientKey(rawKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientKey derives the rate-limit bucket identifier from the raw key.
func clientKey(rawKey string) string {
	if len(rawKey) <= keyPrefixLen {
		return rawKey
	}
	return rawKey[:keyPrefixLen]
}
