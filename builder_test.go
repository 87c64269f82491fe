package goGate_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/policy"
	"github.com/MrEthical07/goGate/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresStore(t *testing.T) {
	_, err := goGate.New().WithConfig(testConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "store") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestBuildRejectsReuse(t *testing.T) {
	b := goGate.New().WithConfig(testConfig()).WithStore(store.NewMemory())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build should fail")
	}
}

func TestBuildRejectsUnknownPolicyRole(t *testing.T) {
	table, err := policy.NewTable([]policy.Rule{{Pattern: "/ops/**", Roles: []string{"OPERATOR"}}})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	_, err = goGate.New().WithConfig(testConfig()).WithStore(store.NewMemory()).WithPolicy(table).Build()
	if err == nil || !strings.Contains(err.Error(), "OPERATOR") {
		t.Fatalf("expected unknown role error, got %v", err)
	}

	roles, _ := permission.NewRegistry("USER")
	_ = roles.Register("OPERATOR")
	roles.Freeze()
	e, err := goGate.New().WithConfig(testConfig()).WithStore(store.NewMemory()).WithPolicy(table).WithRoles(roles).Build()
	if err != nil {
		t.Fatalf("Build with custom roles: %v", err)
	}
	e.Close()
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*goGate.Config){
		"short secret":   func(c *goGate.Config) { c.JWT.Secret = []byte("short") },
		"zero ttl":       func(c *goGate.Config) { c.JWT.AccessTTL = 0 },
		"huge leeway":    func(c *goGate.Config) { c.JWT.Leeway = time.Hour },
		"weak memory":    func(c *goGate.Config) { c.Password.Memory = 1024 },
		"no roles":       func(c *goGate.Config) { c.Account.Roles = nil },
		"default absent": func(c *goGate.Config) { c.Account.DefaultRole = "GUEST" },
		"min password":   func(c *goGate.Config) { c.Account.MinPasswordLength = 0 },
		"throttle":       func(c *goGate.Config) { c.Security.MaxLoginAttempts = 0 },
		"audit buffer": func(c *goGate.Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		},
		"histograms": func(c *goGate.Config) {
			c.Metrics.Enabled = false
			c.Metrics.EnableLatencyHistograms = true
		},
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
}

func TestWithConfigCopiesSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	b := goGate.New().WithConfig(cfg).WithStore(store.NewMemory())
	cfg.JWT.Secret[0] ^= 0xff

	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()

	token, _, err := e.IssueToken("alice", []string{"user"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	other, err := goGate.New().WithConfig(testConfig()).WithStore(store.NewMemory()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer other.Close()
	claims, err := other.ValidateToken(token)
	if err != nil {
		t.Fatalf("secret should have been copied before mutation: %v", err)
	}
	if claims.Roles[0] != "USER" {
		t.Fatalf("IssueToken should canonicalize roles, got %v", claims.Roles)
	}
}

func TestLoginRateLimitedWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newTestEngine(t, func(b *goGate.Builder) {
		cfg := testConfig()
		cfg.Security.MaxLoginAttempts = 2
		b.WithConfig(cfg).WithRedis(client)
	})
	mustRegister(t, e, "alice", "secret1", "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Login(ctx, "alice", "wrong-pass"); !errors.Is(err, goGate.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if _, err := e.Login(ctx, "alice", "secret1"); !errors.Is(err, goGate.ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	mr.FastForward(16 * time.Minute)
	mustLogin(t, e, "alice", "secret1")
	if !e.SecurityReport().RateLimitingActive {
		t.Fatal("report should show the limiter")
	}
}

func TestLimiterOutageIsInternal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	e := newTestEngine(t, func(b *goGate.Builder) { b.WithRedis(client) })
	mr.Close()

	_, err := e.Login(context.Background(), "alice", "secret1")
	if !errors.Is(err, goGate.ErrLimiterUnavailable) || !goGate.IsInternal(err) {
		t.Fatalf("expected ErrLimiterUnavailable, got %v", err)
	}
}

func TestSecurityReport(t *testing.T) {
	e := newTestEngine(t)
	r := e.SecurityReport()
	if r.SigningAlgorithm != "HS256" || r.AccessTTL != time.Hour {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.DefaultRole != "USER" || len(r.Roles) != 2 || r.PolicyRules != len(policy.DefaultRules()) {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.RateLimitingActive || r.AuditActive || !r.MetricsActive {
		t.Fatalf("unexpected toggles %+v", r)
	}
	// testConfig uses cheap Argon2 settings and no throttle.
	joined := strings.Join(r.Warnings, "\n")
	for _, want := range []string{"argon2 memory", "failed-login throttling is inactive", "audit events are disabled"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing warning %q in %q", want, r.Warnings)
		}
	}
}
