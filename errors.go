package goGate

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password. Callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateUsername is matched by every *DuplicateUsernameError.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidRole is matched by every *InvalidRoleError.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidRegistration reports a missing or oversized username or password.
	ErrInvalidRegistration = errors.New("invalid registration request")
	// ErrLoginRateLimited is returned once the failed-login budget is spent.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPrincipalNotFound is returned by CredentialStore.FindByUsername.
	// The Engine never lets it escape Authenticate.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrStoreUnavailable wraps credential store failures. It is an internal
	// error and must never be reported as an authentication failure.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrLimiterUnavailable wraps rate limiter backend failures.
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// DuplicateUsernameError names the username that was already taken.
type DuplicateUsernameError struct {
	Username string
}

func (e *DuplicateUsernameError) Error() string {
	return "Username already exists: " + e.Username
}

// Is makes errors.Is(err, ErrDuplicateUsername) hold.
func (e *DuplicateUsernameError) Is(target error) bool {
	return target == ErrDuplicateUsername
}

// InvalidRoleError names the rejected role and the accepted vocabulary.
type InvalidRoleError struct {
	Role    string
	Allowed []string
}

func (e *InvalidRoleError) Error() string {
	return "Invalid role: " + e.Role + ". Allowed roles: " + strings.Join(e.Allowed, ", ")
}

// Is makes errors.Is(err, ErrInvalidRole) hold.
func (e *InvalidRoleError) Is(target error) bool {
	return target == ErrInvalidRole
}

// IsInternal reports whether err is an infrastructure failure rather than a
// verdict about the caller's input.
func IsInternal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrLimiterUnavailable)
}
