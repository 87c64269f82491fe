package goGate

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/policy"
)

// Principal is a stored identity. Roles are upper-case, sorted, and never
// empty once created.
type Principal struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	Roles        []string `json:"roles"`
}

// HasRole reports whether p holds role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CredentialStore is the persistence contract the Engine consumes.
//
// InsertIfAbsent must be atomic: under concurrent calls for one username
// exactly one returns true. FindByUsername returns ErrPrincipalNotFound
// when the username is absent and a different error on backend failure.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	InsertIfAbsent(ctx context.Context, principal Principal) (bool, error)
}

// PasswordUpdater is implemented by stores that support replacing a hash.
// The Engine uses it to upgrade weak or legacy hashes after a successful
// login.
type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, username, hash string) error
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	TokenID   string    `json:"tokenId,omitempty"`
}

// HasRole reports whether the token carries role.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	Token     string
	TokenType string
	Username  string
	Roles     []string
	ExpiresAt time.Time
}

// Outcome is the terminal verdict of the request gate.
type Outcome uint8

const (
	Allow Outcome = iota
	DenyUnauthenticated
	DenyForbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "ALLOW"
	case DenyUnauthenticated:
		return "DENY_UNAUTHENTICATED"
	case DenyForbidden:
		return "DENY_FORBIDDEN"
	default:
		return "UNKNOWN"
	}
}

// GateState is a step of request evaluation.
type GateState uint8

const (
	StateStart GateState = iota
	StateTokenExtracted
	StateTokenValidated
	StatePolicyChecked
)

func (s GateState) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateTokenExtracted:
		return "TOKEN_EXTRACTED"
	case StateTokenValidated:
		return "TOKEN_VALIDATED"
	case StatePolicyChecked:
		return "POLICY_CHECKED"
	default:
		return "UNKNOWN"
	}
}

// Decision is produced by Engine.Evaluate for every request.
type Decision struct {
	Outcome Outcome
	// Principal is set when a valid token was presented, including on
	// public paths.
	Principal   *Claims
	Requirement policy.Requirement
	// State is the last state reached before the verdict.
	State GateState
	// Cause explains a denial for logs. It must never be sent to clients.
	Cause error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// SecurityReport is a read-only snapshot of the engine's security posture.
type SecurityReport struct {
	SigningAlgorithm   string
	AccessTTL          time.Duration
	Argon2             PasswordConfigReport
	// MaxConcurrentHash is zero when the pool follows GOMAXPROCS.
	MaxConcurrentHash  int
	PolicyRules        int
	Roles              []string
	DefaultRole        string
	RateLimitingActive bool
	AuditActive        bool
	MetricsActive      bool
	// Warnings lists settings weaker than the recommended minimums.
	Warnings           []string
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event to an io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink logs each event through a *slog.Logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a SlogSink that logs at info level through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
