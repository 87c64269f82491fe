// Package jwt issues and validates stateless HS256 access tokens.
//
// A token is the compact three-segment form
//
//	base64url(header) . base64url(payload) . base64url(HMAC-SHA256(secret, header.payload))
//
// with the payload carrying sub, roles, iat, exp and a random jti. Validation
// is a pure function of the token bytes, the shared secret and the clock,
// and reports one of three failure kinds: [ErrMalformed], [ErrBadSignature]
// or [ErrExpired]. Callers facing the network should collapse all three into
// a single unauthenticated outcome.
package jwt
