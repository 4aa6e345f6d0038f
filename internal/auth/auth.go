package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Guard checks requests against a shared token. With mode "none", or
// no token configured, every request passes; misconfigured auth fails
// open rather than locking everyone out.
type Guard struct {
	mode  string
	token string
}

func New(mode, token string) *Guard {
	return &Guard{mode: mode, token: token}
}

// Allow reports whether the request may proceed.
func (g *Guard) Allow(r *http.Request) bool {
	if g.mode != "token" || g.token == "" {
		return true
	}
	return TokenFrom(r) == g.token
}

// TokenFrom extracts the presented token. The `token` query parameter
// wins, because browser WebSocket clients cannot set headers; a bearer
// Authorization header is the fallback for REST callers.
func TokenFrom(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Middleware rejects unauthenticated requests with a JSON 401 before
// they reach the wrapped handler.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
