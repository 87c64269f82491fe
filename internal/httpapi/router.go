package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goGate/middleware"
)

// buildRouter wires the global middleware chain, the gate and the routes.
// The gate runs for every path, including ones that fall through to
// Downstream or 404.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.clientIPMiddleware)
	r.Use(middleware.Gate(s.engine))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.With(middleware.RequireClaims).Get("/me", s.handleMe)
	})

	r.Route("/actuator", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	})

	r.With(middleware.RequireRole("ADMIN")).Get("/api/admin/security-report", s.handleSecurityReport)

	if s.opts.Downstream != nil {
		r.Handle("/*", s.opts.Downstream)
	}

	return r
}
