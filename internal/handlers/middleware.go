package handlers

import (
	"net/http"
	"strings"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
)

type MiddlewareProvider struct {
	tokens primary.TokenService
}

// NewMiddlewareProvider protects routes with tokens; nil leaves them open
func NewMiddlewareProvider(tokens primary.TokenService) *MiddlewareProvider {
	return &MiddlewareProvider{
		tokens: tokens,
	}
}

// Enabled reports whether requests must carry a token
func (m *MiddlewareProvider) Enabled() bool {
	return m != nil && m.tokens != nil
}

// JWTMiddleware accepts a token from the Authorization header, or from the
// token query parameter for websocket upgrades.
func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			ResponseError(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		valid, err := m.tokens.VerifyTokenHMAC(r.Context(), tokenString)
		if err != nil || !valid {
			ResponseError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
