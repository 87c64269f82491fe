package goGate

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGate/jwt"
)

// AuditErrorCode is the machine-readable error field of an audit event.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRole        AuditErrorCode = "invalid_role"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrMissingToken       AuditErrorCode = "missing_token"
	auditErrTokenMalformed     AuditErrorCode = "token_malformed"
	auditErrTokenBadSignature  AuditErrorCode = "token_bad_signature"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if metadata != nil {
		event.Method = metadata["method"]
		event.Path = metadata["path"]
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrDuplicateUsername):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRole):
		return auditErrInvalidRole
	case errors.Is(err, ErrInvalidRegistration):
		return auditErrInvalidRequest
	case errors.Is(err, errMissingToken):
		return auditErrMissingToken
	case errors.Is(err, jwt.ErrExpired):
		return auditErrTokenExpired
	case errors.Is(err, jwt.ErrBadSignature):
		return auditErrTokenBadSignature
	case errors.Is(err, jwt.ErrMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, errForbidden):
		return auditErrForbidden
	case IsInternal(err):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
