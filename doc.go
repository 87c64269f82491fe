// Package goGate is an identity and access-control core: password
// authentication, registration, stateless HS256 bearer tokens and a
// role-based request gate.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goGate is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] contract and value types. Hashing lives in
// package password, tokens in package jwt, rules in package policy and
// role names in package permission. Store implementations are in package
// store; HTTP glue is in package middleware.
//
// # Request gate
//
// [Engine.Evaluate] walks START, TOKEN_EXTRACTED, TOKEN_VALIDATED and
// POLICY_CHECKED, ending in ALLOW, DENY_UNAUTHENTICATED or DENY_FORBIDDEN.
// Token failure kinds never leave the Decision's Cause field.
//
// # What this package must NOT do
//
//   - Log or return raw passwords or token strings.
//   - Treat a store failure as a credential failure.
//   - Import any sub-package that re-imports goGate (no import cycles).
package goGate
