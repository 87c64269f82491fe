package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/policy"
	"github.com/thejerf/abtime"
)

// Engine authenticates principals, registers new ones, issues tokens and
// decides whether a request may pass the gate.
//
// Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config    Config
	store     CredentialStore
	roles     *permission.Registry
	policy    *policy.Table
	limiter   *rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	hasher    *password.Pool
	dummyHash string
	tokens    *jwt.Manager
	clock     abtime.AbstractTime
	logger    *slog.Logger
}

// Close flushes buffered audit events. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped returns how many audit events were discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Policy returns the engine's rule table.
func (e *Engine) Policy() *policy.Table {
	if e == nil {
		return nil
	}
	return e.policy
}

// Roles returns the role vocabulary.
func (e *Engine) Roles() *permission.Registry {
	if e == nil {
		return nil
	}
	return e.roles
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// Authenticate checks username and password against the credential store.
//
// An unknown username and a wrong password both return
// ErrInvalidCredentials, and both pay for one hash verification. Store
// failures wrap ErrStoreUnavailable. The returned Principal has an empty
// PasswordHash.
func (e *Engine) Authenticate(ctx context.Context, username, pw string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	p, err := e.store.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrPrincipalNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if p == nil {
		if _, verr := e.hasher.Verify(ctx, pw, e.dummyHash); verr != nil {
			return nil, verr
		}
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(ctx, pw, p.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsUpgrade(p.PasswordHash) {
		e.upgradeHash(ctx, p.Username, pw)
	}

	return &Principal{
		Username: p.Username,
		Roles:    append([]string(nil), p.Roles...),
	}, nil
}

// upgradeHash is best effort: the login already succeeded.
func (e *Engine) upgradeHash(ctx context.Context, username, pw string) {
	updater, ok := e.store.(PasswordUpdater)
	if !ok {
		return
	}
	hash, err := e.hasher.Hash(ctx, pw)
	if err != nil {
		e.logger.WarnContext(ctx, "password rehash failed", "username", username, "error", err)
		return
	}
	if err := updater.UpdatePasswordHash(ctx, username, hash); err != nil {
		e.logger.WarnContext(ctx, "password rehash not stored", "username", username, "error", err)
		return
	}
	e.metricInc(MetricPasswordRehashed)
	e.emitAudit(ctx, audit.EventPasswordRehashed, true, username, nil, nil)
}

// Login authenticates and issues an access token.
//
// Credential failures return ErrInvalidCredentials regardless of cause.
// With a Redis client configured, repeated failures return
// ErrLoginRateLimited until the cooldown passes.
func (e *Engine) Login(ctx context.Context, username, pw string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricLoginLatency, start)

	ip := clientIPFromContext(ctx)

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, username, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, audit.EventLoginRateLimited, false, username, ErrLoginRateLimited, nil)
				return nil, ErrLoginRateLimited
			}
			e.metricInc(MetricLoginInternalError)
			return nil, fmt.Errorf("%w: %w", ErrLimiterUnavailable, err)
		}
	}

	principal, err := e.Authenticate(ctx, username, pw)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			e.metricInc(MetricLoginInternalError)
			e.logger.ErrorContext(ctx, "login failed", "error", err)
			return nil, err
		}

		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, audit.EventLoginFailure, false, username, err, nil)
		if e.limiter != nil {
			if lerr := e.limiter.IncrementLogin(ctx, username, ip); lerr != nil && !errors.Is(lerr, rate.ErrRateLimited) {
				e.logger.WarnContext(ctx, "login limiter increment failed", "error", lerr)
			}
		}
		return nil, ErrInvalidCredentials
	}

	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, principal.Username); err != nil {
			e.logger.WarnContext(ctx, "login limiter reset failed", "error", err)
		}
	}

	token, expiresAt, err := e.tokens.IssueWithExpiry(principal.Username, principal.Roles)
	if err != nil {
		e.metricInc(MetricLoginInternalError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, audit.EventLoginSuccess, true, principal.Username, nil, nil)

	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		Username:  principal.Username,
		Roles:     principal.Roles,
		ExpiresAt: expiresAt,
	}, nil
}

// IssueToken mints a token for a principal without checking a password.
// It is meant for operator tooling and tests.
func (e *Engine) IssueToken(username string, roles []string) (string, time.Time, error) {
	if e == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	return e.tokens.IssueWithExpiry(username, permission.SortRoles(roles))
}

// ValidateToken validates a bearer token and returns its claims. Failures
// wrap jwt.ErrMalformed, jwt.ErrBadSignature or jwt.ErrExpired.
func (e *Engine) ValidateToken(token string) (*Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	return toClaims(claims), nil
}

func toClaims(c *jwt.AccessClaims) *Claims {
	out := &Claims{
		Subject: c.Subject,
		Roles:   append([]string(nil), c.Roles...),
		TokenID: c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
