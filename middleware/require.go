package middleware

import (
	"net/http"
)

// RequireClaims rejects requests that Gate let through without a
// principal. Mount it on handlers that read ClaimsFromContext.
func RequireClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r); !ok {
			Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows a request whose principal holds any of roles. It
// relies on Gate having run first.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r)
			if !ok {
				Unauthorized(w)
				return
			}
			for _, role := range roles {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			Forbidden(w)
		})
	}
}
