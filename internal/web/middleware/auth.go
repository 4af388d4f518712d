package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetrest/internal/config"
	"github.com/JonMunkholm/sheetrest/internal/logging"
)

// APIKeyAuth checks the X-API-KEY header, or an Authorization bearer token,
// against the configured keys. Preflight OPTIONS requests and all requests
// when RequireAPIKey is false pass through.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			logger := logging.FromContext(r.Context())

			key := apiKey(r)
			if key == "" {
				logger.Warn("auth: missing API key", "path", r.URL.Path, "method", r.Method)
				writeError(w, http.StatusUnauthorized, errorBody{
					Error:   "missing API key",
					Message: "An API key is required",
					Action:  "Send the key in the X-API-KEY header",
					Code:    "AUTH001",
				})
				return
			}

			if !isValidAPIKey(key, cfg.APIKeys) {
				logger.Warn("auth: invalid API key", "path", r.URL.Path, "method", r.Method)
				writeError(w, http.StatusForbidden, errorBody{
					Error:   "invalid API key",
					Message: "The API key is not valid",
					Action:  "Check the configured key",
					Code:    "AUTH002",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func apiKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-KEY")); k != "" {
		return k
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// isValidAPIKey compares key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}
