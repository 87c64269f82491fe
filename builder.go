package goGate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goGate/internal/audit"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/policy"
	"github.com/redis/go-redis/v9"
	"github.com/thejerf/abtime"
)

// Builder assembles an Engine. A Builder can be used for one Build call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	policy    *policy.Table
	roles     *permission.Registry
	auditSink AuditSink
	logger    *slog.Logger
	clock     abtime.AbstractTime

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithPolicy sets a prebuilt rule table, overriding Config.Policy.Rules.
func (b *Builder) WithPolicy(table *policy.Table) *Builder {
	b.policy = table
	return b
}

// WithRoles sets the role vocabulary, overriding Config.Account.Roles.
func (b *Builder) WithRoles(registry *permission.Registry) *Builder {
	b.roles = registry
	return b
}

// WithRedis enables the failed-login limiter on client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Without one the engine logs nothing.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces wall-clock time for token issue and validation.
func (b *Builder) WithClock(clock abtime.AbstractTime) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login and gate latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	// -------- ROLES --------
	roles := b.roles
	if roles == nil {
		registry, err := permission.NewRegistry(cfg.Account.DefaultRole)
		if err != nil {
			return nil, err
		}
		for _, name := range cfg.Account.Roles {
			if registry.Has(name) {
				continue
			}
			if err := registry.Register(name); err != nil {
				return nil, err
			}
		}
		registry.Freeze()
		roles = registry
	}

	// -------- POLICY --------
	table := b.policy
	if table == nil {
		t, err := policy.NewTable(cfg.Policy.Rules)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		table = t
	}
	for _, rule := range table.Rules() {
		for _, role := range rule.Roles {
			if !roles.Has(role) {
				return nil, fmt.Errorf("policy rule %s references unknown role %s", rule.Pattern, role)
			}
		}
	}

	// -------- CRYPTO --------
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	dummy, err := argon.Hash("goGate-timing-equalizer")
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	tokens, err := jwt.NewManager(jwt.Config{
		Secret: cloneBytes(cfg.JWT.Secret),
		TTL:    cfg.JWT.AccessTTL,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Clock:  clock,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		roles:     roles,
		policy:    table,
		hasher:    password.NewPool(argon, cfg.Password.MaxConcurrent),
		dummyHash: dummy,
		tokens:    tokens,
		clock:     clock,
		logger:    logger.With("component", "gogate"),
		metrics:   NewMetrics(cfg.Metrics),
	}

	if b.redis != nil && cfg.Security.EnableLoginThrottle {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:                cfg.Security.RedisPrefix,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}
