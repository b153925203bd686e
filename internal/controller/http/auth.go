package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/vadim/neo-dashboard/internal/httpx/response"
)

type tokenKey struct{}

// RequireBearer rejects requests without an Authorization bearer token and stores
// the token in the request context for forwarding to the remote API
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Unauthorized(w, "missing bearer token")
			return
		}

		ctx := context.WithValue(r.Context(), tokenKey{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFrom returns the bearer token stored by RequireBearer
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
