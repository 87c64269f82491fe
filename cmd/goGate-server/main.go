// Command goGate-server runs the goGate authentication endpoints and
// request gate in front of a downstream placeholder.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/appconfig"
	"github.com/MrEthical07/goGate/internal/httpapi"
	"github.com/MrEthical07/goGate/internal/logging"
	"github.com/MrEthical07/goGate/internal/seed"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/store"
)

var version = "dev"

const redisPingTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()

	configPath := os.Getenv("GOGATE_CONFIG")
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting goGate", "version", version, "config", configPath, "store", cfg.Store.Driver)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	var rdb redis.UniversalClient
	if cfg.UsesRedis() {
		rdb, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing redis", "error", closeErr)
			}
		}()
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	credentials, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := goGate.New().
		WithConfig(engineCfg).
		WithStore(credentials).
		WithLogger(log).
		WithAuditSink(auditSink(cfg.Audit, log))
	if rdb != nil && cfg.Auth.LoginThrottle {
		builder = builder.WithRedis(rdb)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	log.Info("engine ready",
		"access_ttl", report.AccessTTL,
		"policy_rules", report.PolicyRules,
		"roles", strings.Join(report.Roles, ","),
		"rate_limiting", report.RateLimitingActive,
		"audit", report.AuditActive,
	)
	for _, w := range report.Warnings {
		log.Warn("security posture", "warning", w)
	}

	if cfg.Seed.Enabled {
		created, err := seed.Run(ctx, engine, seed.Defaults(cfg.Seed.AdminPassword, cfg.Seed.UserPassword), log)
		if err != nil {
			return err
		}
		for _, c := range created {
			if c.GeneratedPassword != "" {
				// Kept out of the structured log; shown once to the operator.
				fmt.Fprintf(os.Stderr, "seeded %s (%s) with generated password: %s\n", c.Username, c.Role, c.GeneratedPassword)
			}
		}
		log.Info("seeding complete", "created", len(created))
	}

	srv, err := httpapi.New(httpapi.Options{
		Engine:       engine,
		Logger:       log,
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Downstream:   http.HandlerFunc(placeholder),
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing http server", "error", closeErr)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

func connectRedis(ctx context.Context, cfg appconfig.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func openStore(ctx context.Context, cfg *appconfig.Config, rdb redis.UniversalClient) (goGate.CredentialStore, func(), error) {
	switch cfg.Store.Driver {
	case appconfig.DriverRedis:
		return store.NewRedis(rdb, cfg.Store.KeyPrefix), func() {}, nil
	case appconfig.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating database directory: %w", err)
		}
		s, err := store.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case appconfig.DriverPostgres:
		s, err := store.OpenPostgres(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}

func auditSink(cfg appconfig.AuditConfig, log *slog.Logger) goGate.AuditSink {
	var w io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return goGate.NewSlogSink(log)
	}
	return goGate.NewJSONWriterSink(w)
}

// placeholder stands in for the business API. It echoes who the gate let
// through.
func placeholder(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"path": r.URL.Path, "method": r.Method}
	if claims, ok := middleware.ClaimsFromContext(r); ok {
		body["username"] = claims.Subject
		body["roles"] = claims.Roles
	}
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // best effort
	json.NewEncoder(w).Encode(body)
}
