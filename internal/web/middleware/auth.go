package middleware

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/txnimport/internal/config"
)

// APIKeyHeader carries the client's key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key does not match a configured
// key: 401 AUTH_MISSING_KEY without a key, 403 AUTH_INVALID_KEY otherwise.
// With RequireAPIKey unset every request passes; with it set and no keys
// configured every request is rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys = append(keys, []byte(k))
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			switch {
			case presented == "":
				rejectKey(w, r, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
			case !matchesAny([]byte(presented), keys):
				rejectKey(w, r, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// matchesAny compares against every key in constant time, so timing does not
// reveal which key (if any) matched.
func matchesAny(key []byte, keys [][]byte) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(key, k)
	}
	return match == 1
}

func rejectKey(w http.ResponseWriter, r *http.Request, status int, message, code string) {
	slog.Warn("auth: "+message,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"message":%q,"code":%q}`, message, message, code)
}
