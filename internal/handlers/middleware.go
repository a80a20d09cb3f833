package handlers

import (
	"net/http"
	"strings"
)

// Uploads beyond this size are rejected outright.
const maxUploadBytes = 10 << 20

// API wraps an API handler with CORS headers and, when a token is configured,
// bearer-token authentication. Requests without a valid token are rejected
// with 401; the relay never attempts its own retry or challenge flow.
func (m Main) API(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if m.cfg.AuthToken != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token != m.cfg.AuthToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}

		next(w, r)
	}
}
