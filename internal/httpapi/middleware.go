package httpapi

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey int

const claimsContextKey contextKey = iota

// Claims is the JWT payload accepted by the operator HTTP API.
type Claims struct {
	jwt.RegisteredClaims
}

// ClaimsFromContext returns the claims attached by JWTMiddleware, or nil if
// the request was not authenticated (or auth is disabled).
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// JWTMiddleware validates an RS256 bearer token against pubKey and attaches
// its claims to the request context. Requests without a valid token are
// rejected with 401.
func JWTMiddleware(pubKey *rsa.PublicKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(header, prefix)

			claims := &Claims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
				return pubKey, nil
			}, jwt.WithValidMethods([]string{"RS256"}))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
