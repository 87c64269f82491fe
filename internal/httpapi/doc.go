// Package httpapi serves the goGate authentication endpoints and puts the
// request gate in front of everything else.
//
// Routes:
//
//	POST /api/auth/login              public, issues a bearer token
//	POST /api/auth/register           public, creates a principal
//	GET  /api/auth/me                 any authenticated principal
//	GET  /actuator/health             public
//	GET  /actuator/metrics            public, Prometheus text
//	GET  /api/admin/security-report   ADMIN
//
// Anything else goes through the gate to Options.Downstream.
package httpapi
