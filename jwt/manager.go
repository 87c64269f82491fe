package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"
)

// MinSecretBytes is the shortest HMAC secret NewManager accepts.
const MinSecretBytes = 32

// Config is read once at startup. The secret is never mutated afterwards.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Leeway tolerates clock skew between issuing and validating nodes.
	Leeway time.Duration
	// Clock defaults to wall-clock time.
	Clock abtime.AbstractTime
}

// Manager issues and validates HS256 access tokens.
//
// A Manager holds no per-token state and is safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	leeway time.Duration
	clock  abtime.AbstractTime
	method jwt.SigningMethod
}

// AccessClaims is the token payload.
type AccessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager. The secret is copied.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Clock == nil {
		cfg.Clock = abtime.NewRealTime()
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Manager{
		secret: secret,
		ttl:    cfg.TTL,
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		clock:  cfg.Clock,
		method: jwt.SigningMethodHS256,
	}, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for subject carrying roles, valid for the configured TTL.
func (m *Manager) Issue(subject string, roles []string) (string, error) {
	token, _, err := m.IssueWithExpiry(subject, roles)
	return token, err
}

// IssueWithExpiry is Issue that also returns the exp claim as written into
// the token. exp is whole seconds, rounded up, so a token never expires
// before issuedAt+TTL.
func (m *Manager) IssueWithExpiry(subject string, roles []string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("cannot issue token without subject")
	}
	if len(roles) == 0 {
		return "", time.Time{}, errors.New("cannot issue token without roles")
	}

	now := m.clock.Now()
	exp := jwt.NewNumericDate(ceilSecond(now.Add(m.ttl)))
	claims := AccessClaims{
		Roles: append([]string(nil), roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

// Validate checks structure, signature, shape and expiry, in that order.
// The MAC is verified before the payload is decoded, so a forged token is
// always ErrBadSignature whatever its claims look like. A token is valid
// up to and including the instant exp.
//
// Every failure wraps exactly one of ErrMalformed, ErrBadSignature or
// ErrExpired, all of which wrap ErrInvalidToken.
func (m *Manager) Validate(tokenStr string) (*AccessClaims, error) {
	if !hasThreeSegments(tokenStr) {
		return nil, ErrMalformed
	}
	if err := m.verifySignature(tokenStr); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)

	claims := &AccessClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		// The signature already checked out; anything left is shape.
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if claims.Subject == "" || len(claims.Roles) == 0 || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}
	for _, role := range claims.Roles {
		if role == "" {
			return nil, ErrMalformed
		}
	}

	if err := m.validator().Validate(withoutExpiry{claims}); err != nil {
		return nil, classify(err)
	}
	if now := m.clock.Now(); now.After(claims.ExpiresAt.Time.Add(m.leeway)) {
		return nil, fmt.Errorf("%w: exp %s passed at %s", ErrExpired,
			claims.ExpiresAt.Time.Format(time.RFC3339), now.Format(time.RFC3339Nano))
	}

	return claims, nil
}

// verifySignature checks the header algorithm and the HS256 MAC over the
// raw segments without decoding the payload.
func (m *Manager) verifySignature(tokenStr string) error {
	parser := jwt.NewParser(jwt.WithStrictDecoding())
	parts := strings.Split(tokenStr, ".")

	rawHeader, err := parser.DecodeSegment(parts[0])
	if err != nil {
		return fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	if header.Alg != m.method.Alg() {
		return fmt.Errorf("%w: unexpected alg %q", ErrBadSignature, header.Alg)
	}

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return fmt.Errorf("%w: signature: %w", ErrMalformed, err)
	}
	if err := m.method.Verify(parts[0]+"."+parts[1], sig, m.secret); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	return nil
}

// withoutExpiry hides exp from the library validator, which treats
// now == exp as expired. Validate compares exp itself.
type withoutExpiry struct {
	*AccessClaims
}

func (withoutExpiry) GetExpirationTime() (*jwt.NumericDate, error) {
	return nil, nil
}

func (m *Manager) validator() *jwt.Validator {
	options := []jwt.ParserOption{
		jwt.WithTimeFunc(m.clock.Now),
	}
	if m.leeway > 0 {
		options = append(options, jwt.WithLeeway(m.leeway))
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	return jwt.NewValidator(options...)
}

func ceilSecond(t time.Time) time.Time {
	if trunc := t.Truncate(time.Second); !trunc.Equal(t) {
		return trunc.Add(time.Second)
	}
	return t
}

func hasThreeSegments(tokenStr string) bool {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// classify maps library errors onto the three token failure kinds. The
// library error is kept in the chain for diagnostics.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
