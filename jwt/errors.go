package jwt

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the parent of every validation failure.
var ErrInvalidToken = errors.New("invalid token")

var (
	// ErrMalformed covers bad structure, bad encoding and missing or
	// mistyped claims.
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	// ErrBadSignature covers MAC mismatch and any algorithm other than HS256.
	ErrBadSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	// ErrExpired is returned once the clock passes the exp claim.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Kind returns the token failure kind wrapped by err, or nil when err is
// not a token validation error.
func Kind(err error) error {
	switch {
	case errors.Is(err, ErrMalformed):
		return ErrMalformed
	case errors.Is(err, ErrBadSignature):
		return ErrBadSignature
	case errors.Is(err, ErrExpired):
		return ErrExpired
	default:
		return nil
	}
}
