package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

func bearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
}

func writeBearerUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"detail": message,
	})
}

// AdminAuth accepts the admin token as a bearer token or in X-Admin-Token.
// An empty adminToken disables the check.
func AdminAuth(adminToken string) func(http.Handler) http.Handler {
	key := strings.TrimSpace(adminToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := bearerToken(r)
			if token == "" {
				token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
			}
			if token == "" {
				writeBearerUnauthorized(w, "Missing authentication token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				writeBearerUnauthorized(w, "Invalid authentication token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
