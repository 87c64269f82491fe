package goGate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/policy"
)

var (
	// errMissingToken is the Cause of a denial with no usable bearer credential.
	errMissingToken = errors.New("missing bearer token")
	errForbidden    = errors.New("principal lacks required role")
)

// Evaluate runs the request gate for one request.
//
// authorization is the raw Authorization header value. Evaluate is a pure
// function of its inputs, the signing secret, the clock and the rule
// table: evaluating the same request twice yields the same decision.
//
// Token failures deny with DenyUnauthenticated; the failure kind is kept
// in Decision.Cause for logs only.
func (e *Engine) Evaluate(ctx context.Context, authorization, path, method string) Decision {
	if e == nil {
		return Decision{Outcome: DenyUnauthenticated, Cause: ErrEngineNotReady}
	}
	start := time.Now()

	d := e.evaluate(authorization, path, method)

	e.observeSince(MetricGateLatency, start)
	switch d.Outcome {
	case Allow:
		e.metricInc(MetricGateAllowed)
		return d
	case DenyUnauthenticated:
		e.metricInc(MetricGateUnauthenticated)
	case DenyForbidden:
		e.metricInc(MetricGateForbidden)
	}

	e.logger.DebugContext(ctx, "request denied",
		"outcome", d.Outcome.String(),
		"state", d.State.String(),
		"method", method,
		"path", path,
		"cause", d.Cause,
	)
	e.emitAudit(ctx, audit.EventGateDenied, false, subjectOf(d.Principal), d.Cause, func() map[string]string {
		return map[string]string{
			"outcome": d.Outcome.String(),
			"method":  method,
			"path":    path,
		}
	})

	return d
}

func (e *Engine) evaluate(authorization, path, method string) Decision {
	req := e.policy.RequiredRoles(path, policy.Method(strings.ToUpper(method)))
	d := Decision{State: StateStart, Requirement: req}

	// START
	token, ok := bearerToken(authorization)
	if !ok {
		if req.Public {
			d.Outcome = Allow
			return d
		}
		d.Outcome = DenyUnauthenticated
		d.Cause = errMissingToken
		return d
	}
	d.State = StateTokenExtracted

	// TOKEN_EXTRACTED -> TOKEN_VALIDATED
	claims, err := e.tokens.Validate(token)
	if err != nil {
		e.countTokenFailure(err)
		if req.Public {
			d.Outcome = Allow
			return d
		}
		d.Outcome = DenyUnauthenticated
		d.Cause = err
		return d
	}
	d.State = StateTokenValidated
	d.Principal = toClaims(claims)

	// TOKEN_VALIDATED -> POLICY_CHECKED
	d.State = StatePolicyChecked
	if req.Allows(d.Principal.Roles) {
		d.Outcome = Allow
		return d
	}
	d.Outcome = DenyForbidden
	d.Cause = errForbidden
	return d
}

func (e *Engine) countTokenFailure(err error) {
	switch jwt.Kind(err) {
	case jwt.ErrExpired:
		e.metricInc(MetricTokenExpired)
	case jwt.ErrBadSignature:
		e.metricInc(MetricTokenBadSignature)
	default:
		e.metricInc(MetricTokenMalformed)
	}
}

// bearerToken extracts the credential from an Authorization header. The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func subjectOf(c *Claims) string {
	if c == nil {
		return ""
	}
	return c.Subject
}
