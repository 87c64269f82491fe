package goGate

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/policy"
)

// Config is the complete engine configuration.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Account  AccountConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Policy   PolicyConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access token signing. Tokens are always HS256.
type JWTConfig struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the Argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	// MaxConcurrent bounds simultaneous hash computations. Zero means GOMAXPROCS.
	MaxConcurrent int
}

// AccountConfig governs registration.
type AccountConfig struct {
	DefaultRole       string
	Roles             []string
	MinPasswordLength int
	MaxPasswordBytes  int
	MaxUsernameLength int
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds failed-login throttling. Throttling needs a Redis
// client on the Builder and is skipped without one.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	RedisPrefix           string
}

// PolicyConfig lists the access rules. A table passed to Builder.WithPolicy
// takes precedence.
type PolicyConfig struct {
	Rules []policy.Rule
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field set except
// JWT.Secret, which callers must supply.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 8 * time.Hour,
			Issuer:    "goGate",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			DefaultRole:       "USER",
			Roles:             []string{"USER", "ADMIN"},
			MinPasswordLength: 6,
			MaxPasswordBytes:  1024,
			MaxUsernameLength: 64,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			RedisPrefix:           "gogate",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Policy: PolicyConfig{
			Rules: policy.DefaultRules(),
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Account.Roles = append([]string(nil), cfg.Account.Roles...)
	if cfg.Policy.Rules != nil {
		out.Policy.Rules = make([]policy.Rule, len(cfg.Policy.Rules))
		for i, r := range cfg.Policy.Rules {
			r.Roles = append([]string(nil), r.Roles...)
			out.Policy.Rules[i] = r
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. It does not mutate c.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxConcurrent < 0 {
		return errors.New("Password MaxConcurrent must be >= 0")
	}

	// Account
	if len(c.Account.Roles) == 0 {
		return errors.New("Account Roles must not be empty")
	}
	defaultListed := false
	for _, r := range c.Account.Roles {
		if strings.TrimSpace(r) == "" {
			return errors.New("Account Roles must not contain blank names")
		}
		if strings.EqualFold(strings.TrimSpace(r), strings.TrimSpace(c.Account.DefaultRole)) {
			defaultListed = true
		}
	}
	if !defaultListed {
		return errors.New("Account DefaultRole must be one of Account Roles")
	}
	if c.Account.MinPasswordLength < 1 {
		return errors.New("Account MinPasswordLength must be >= 1")
	}
	if c.Account.MaxPasswordBytes < c.Account.MinPasswordLength {
		return errors.New("Account MaxPasswordBytes must be >= MinPasswordLength")
	}
	if c.Account.MaxUsernameLength < 1 {
		return errors.New("Account MaxUsernameLength must be >= 1")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("LoginCooldownDuration must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
