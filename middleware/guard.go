package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/policy"
)

// ClaimsFromContext returns the principal resolved by Gate, if any.
func ClaimsFromContext(r *http.Request) (*goGate.Claims, bool) {
	return goGate.ClaimsFromContext(r.Context())
}

// Gate runs engine.Evaluate on every request before next.
//
// Denied requests never reach next: DENY_UNAUTHENTICATED answers 401 with
// a WWW-Authenticate challenge and DENY_FORBIDDEN answers 403. The body
// never says why a token was rejected. Allowed requests carry the resolved
// principal, when there is one, in the request context.
//
// The gate only decides on canonical paths, the same string the router
// dispatches on. A path with dot segments or duplicate slashes is
// redirected (308) to its clean form; an encoded slash is rejected with
// 400.
func Gate(engine *goGate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				Unauthorized(w)
				return
			}
			if !canonicalPath(w, r) {
				return
			}

			d := engine.Evaluate(r.Context(), r.Header.Get("Authorization"), r.URL.Path, r.Method)
			switch d.Outcome {
			case goGate.Allow:
				if d.Principal != nil {
					r = r.WithContext(goGate.WithClaims(r.Context(), d.Principal))
				}
				next.ServeHTTP(w, r)
			case goGate.DenyForbidden:
				Forbidden(w)
			default:
				Unauthorized(w)
			}
		})
	}
}

// canonicalPath answers non-canonical request paths and reports whether the
// request may continue to the gate.
func canonicalPath(w http.ResponseWriter, r *http.Request) bool {
	if strings.Contains(strings.ToLower(r.URL.RawPath), "%2f") {
		writeError(w, http.StatusBadRequest, "bad request")
		return false
	}
	if r.URL.Path == "" {
		return true
	}
	clean := policy.CleanPath(r.URL.Path)
	if clean == r.URL.Path {
		return true
	}
	if r.URL.RawQuery != "" {
		clean += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", clean)
	writeError(w, http.StatusPermanentRedirect, "non-canonical path")
	return false
}

// Unauthorized writes the gate's 401 response.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="goGate"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

// Forbidden writes the gate's 403 response.
func Forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "forbidden")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
