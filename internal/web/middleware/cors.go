package middleware

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/sheetrest/internal/config"
)

// CORS sets cross-origin headers on every response, including errors.
// With a "*" origin the header is a literal wildcard; otherwise a listed
// request Origin is echoed back.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	allowAll := false
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
			continue
		}
		origins[strings.ToLower(o)] = true
	}
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	methods := strings.Join(cfg.AllowedMethods, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch origin := r.Header.Get("Origin"); {
			case allowAll:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && origins[strings.ToLower(origin)]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Allow", methods)
			}
			next.ServeHTTP(w, r)
		})
	}
}
