package middleware

import (
	"net/http"
	"strings"

	"github.com/textra-ai/textra/internal/api"
	"github.com/textra-ai/textra/internal/auth"
)

// AdminOnly restricts a route group to the configured admin accounts.
// Must run after the auth middleware.
func AdminOnly(emails []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetUserClaims(r.Context())
			if claims == nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}
			if _, ok := allowed[strings.ToLower(claims.Email)]; !ok {
				api.HandleError(w, api.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
