package goGate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/goGate/internal/audit"
)

// Register creates a principal with the given role, or the default role
// when role is blank.
//
// Errors:
//   - ErrInvalidRegistration: empty or oversized username, password outside
//     the configured length bounds.
//   - *DuplicateUsernameError: username already taken, including when a
//     concurrent Register wins the race.
//   - *InvalidRoleError: role is non-blank and not in the vocabulary.
//   - ErrStoreUnavailable: the store failed.
//
// The returned Principal has an empty PasswordHash.
func (e *Engine) Register(ctx context.Context, username, pw, role string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.validateRegistration(username, pw); err != nil {
		e.metricInc(MetricRegisterInvalid)
		e.emitAudit(ctx, audit.EventRegisterRejected, false, username, err, nil)
		return nil, err
	}

	exists, err := e.store.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, e.duplicate(ctx, username)
	}

	canonical, err := e.roles.Normalize(role)
	if err != nil {
		roleErr := &InvalidRoleError{Role: strings.TrimSpace(role), Allowed: e.roles.Names()}
		e.metricInc(MetricRegisterInvalid)
		e.emitAudit(ctx, audit.EventRegisterRejected, false, username, roleErr, nil)
		return nil, roleErr
	}

	hash, err := e.hasher.Hash(ctx, pw)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	principal := Principal{
		Username:     username,
		PasswordHash: hash,
		Roles:        []string{canonical},
	}
	inserted, err := e.store.InsertIfAbsent(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !inserted {
		return nil, e.duplicate(ctx, username)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, audit.EventRegisterSuccess, true, username, nil, func() map[string]string {
		return map[string]string{"role": canonical}
	})

	principal.PasswordHash = ""
	return &principal, nil
}

func (e *Engine) duplicate(ctx context.Context, username string) error {
	e.metricInc(MetricRegisterDuplicate)
	err := &DuplicateUsernameError{Username: username}
	e.emitAudit(ctx, audit.EventRegisterDuplicate, false, username, err, nil)
	return err
}

func (e *Engine) validateRegistration(username, pw string) error {
	acct := e.config.Account

	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidRegistration)
	case strings.TrimSpace(username) != username:
		return fmt.Errorf("%w: username must not start or end with whitespace", ErrInvalidRegistration)
	case utf8.RuneCountInString(username) > acct.MaxUsernameLength:
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidRegistration, acct.MaxUsernameLength)
	case !utf8.ValidString(username):
		return fmt.Errorf("%w: username must be valid UTF-8", ErrInvalidRegistration)
	}

	switch {
	case pw == "":
		return fmt.Errorf("%w: password is required", ErrInvalidRegistration)
	case len(pw) < acct.MinPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, acct.MinPasswordLength)
	case len(pw) > acct.MaxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidRegistration, acct.MaxPasswordBytes)
	}

	return nil
}
