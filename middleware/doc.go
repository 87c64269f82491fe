// Package middleware adapts goGate.Engine to net/http.
//
// # Guards
//
//   - [Gate]: runs the request gate on every request and attaches the
//     resolved principal to the context.
//   - [RequireClaims]: per-route check that a principal is present.
//   - [RequireRole]: per-route any-of role check on the attached principal.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision comes from
// Engine.Evaluate.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly.
//   - Reveal token failure kinds in responses.
package middleware
