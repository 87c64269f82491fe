package appconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/logging"
	"github.com/MrEthical07/goGate/policy"
)

// Store drivers understood by the server.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const minJWTSecretLength = 32

// Config is the server configuration read from config.yaml.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Password PasswordConfig `yaml:"password"`
	Seed     SeedConfig     `yaml:"seed"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  logging.Config `yaml:"logging"`
}

// HTTPConfig contains listener settings.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// RedisConfig is shared by the redis store and the login throttle. An
// empty Addr means no Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds token and account settings.
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	Issuer           string        `yaml:"issuer"`
	Leeway           time.Duration `yaml:"leeway"`
	PolicyFile       string        `yaml:"policy_file"`
	DefaultRole      string        `yaml:"default_role"`
	Roles            []string      `yaml:"roles"`
	LoginThrottle    bool          `yaml:"login_throttle"`
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LoginCooldown    time.Duration `yaml:"login_cooldown"`
}

// PasswordConfig tunes Argon2id. Memory is in KiB.
type PasswordConfig struct {
	Memory        uint32 `yaml:"memory"`
	Time          uint32 `yaml:"time"`
	Parallelism   uint8  `yaml:"parallelism"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// SeedConfig controls the demo principals created at startup.
type SeedConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AdminPassword string `yaml:"admin_password"`
	UserPassword  string `yaml:"user_password"`
}

// AuditConfig routes audit events. Output is stdout, stderr or log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
}

// MetricsConfig toggles engine counters and latency histograms.
type MetricsConfig struct {
	Enabled    bool `yaml:"enabled"`
	Histograms bool `yaml:"histograms"`
}

// Load reads path over the defaults, applies GOGATE_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Store: StoreConfig{
			Driver:    DriverMemory,
			Path:      "./data/gogate.db",
			KeyPrefix: "gogate",
		},
		Auth: AuthConfig{
			TokenTTL:         8 * time.Hour,
			Issuer:           "goGate",
			DefaultRole:      "USER",
			Roles:            []string{"USER", "ADMIN"},
			LoginThrottle:    true,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
		},
		Seed: SeedConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled: true,
			Output:  "log",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			Histograms: true,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GOGATE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("GOGATE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("GOGATE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("GOGATE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GOGATE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GOGATE_DATABASE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("GOGATE_POSTGRES_DSN"); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv("GOGATE_POLICY_FILE"); v != "" {
		cfg.Auth.PolicyFile = v
	}
	if v := os.Getenv("GOGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GOGATE_SEED_ADMIN_PASSWORD"); v != "" {
		cfg.Seed.AdminPassword = v
	}
	if v := os.Getenv("GOGATE_SEED_USER_PASSWORD"); v != "" {
		cfg.Seed.UserPassword = v
	}
	if v := os.Getenv("GOGATE_TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing GOGATE_TOKEN_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = ttl
	}
	if v := os.Getenv("GOGATE_SEED_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing GOGATE_SEED_ENABLED: %w", err)
		}
		cfg.Seed.Enabled = enabled
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Addr == "" {
		errs = append(errs, "http.addr is required")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, "http.max_body_bytes must be positive")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis store")
		}
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite store")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, "store.postgres_dsn is required for the postgres store (set GOGATE_POSTGRES_DSN)")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of memory, redis, sqlite, postgres", c.Store.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required (set GOGATE_JWT_SECRET)")
	} else if len(c.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "auth.jwt_secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}
	if c.Auth.LoginThrottle && c.Auth.MaxLoginAttempts <= 0 {
		errs = append(errs, "auth.max_login_attempts must be positive when login_throttle is on")
	}

	switch strings.ToLower(c.Audit.Output) {
	case "stdout", "stderr", "log":
	default:
		errs = append(errs, fmt.Sprintf("audit.output %q is not one of stdout, stderr, log", c.Audit.Output))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EngineConfig translates the server settings into an engine Config,
// loading the policy file when one is named.
func (c *Config) EngineConfig() (goGate.Config, error) {
	cfg := goGate.DefaultConfig()

	cfg.JWT.Secret = []byte(c.Auth.JWTSecret)
	cfg.JWT.AccessTTL = c.Auth.TokenTTL
	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.Leeway = c.Auth.Leeway

	if c.Password.Memory != 0 {
		cfg.Password.Memory = c.Password.Memory
	}
	if c.Password.Time != 0 {
		cfg.Password.Time = c.Password.Time
	}
	if c.Password.Parallelism != 0 {
		cfg.Password.Parallelism = c.Password.Parallelism
	}
	cfg.Password.MaxConcurrent = c.Password.MaxConcurrent

	if c.Auth.DefaultRole != "" {
		cfg.Account.DefaultRole = c.Auth.DefaultRole
	}
	if len(c.Auth.Roles) > 0 {
		cfg.Account.Roles = append([]string(nil), c.Auth.Roles...)
	}

	cfg.Security.EnableLoginThrottle = c.Auth.LoginThrottle
	cfg.Security.MaxLoginAttempts = c.Auth.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Auth.LoginCooldown
	cfg.Security.RedisPrefix = c.Store.KeyPrefix

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Histograms

	if c.Auth.PolicyFile != "" {
		table, err := policy.Load(c.Auth.PolicyFile)
		if err != nil {
			return goGate.Config{}, err
		}
		cfg.Policy.Rules = table.Rules()
	}

	if err := cfg.Validate(); err != nil {
		return goGate.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

// UsesRedis reports whether a Redis client is needed. The login throttle
// needs Redis, so it stays off unless redis.addr is set.
func (c *Config) UsesRedis() bool {
	return c.Store.Driver == DriverRedis || (c.Auth.LoginThrottle && c.Redis.Addr != "")
}
