package goGate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/store"
	"github.com/thejerf/abtime"
)

var testSecret = []byte("an-hs256-secret-of-at-least-32-bytes!")

var testEpoch = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

// testConfig keeps Argon2 cheap so tests stay fast.
func testConfig() goGate.Config {
	cfg := goGate.DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.JWT.AccessTTL = time.Hour
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

type testEngine struct {
	*goGate.Engine
	store *store.Memory
	clock *abtime.ManualTime
}

func newTestEngine(t testing.TB, mutate ...func(*goGate.Builder)) testEngine {
	t.Helper()

	mem := store.NewMemory()
	clock := abtime.NewManualAtTime(testEpoch)

	b := goGate.New().
		WithConfig(testConfig()).
		WithStore(mem).
		WithClock(clock)
	for _, m := range mutate {
		m(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return testEngine{Engine: engine, store: mem, clock: clock}
}

func mustRegister(t testing.TB, e testEngine, username, pw, role string) *goGate.Principal {
	t.Helper()
	p, err := e.Register(context.Background(), username, pw, role)
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return p
}

func mustLogin(t testing.TB, e testEngine, username, pw string) *goGate.LoginResult {
	t.Helper()
	res, err := e.Login(context.Background(), username, pw)
	if err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
	return res
}

// brokenStore fails every call.
type brokenStore struct{}

var errBackendDown = errors.New("connection refused")

func (brokenStore) FindByUsername(context.Context, string) (*goGate.Principal, error) {
	return nil, errBackendDown
}

func (brokenStore) ExistsByUsername(context.Context, string) (bool, error) {
	return false, errBackendDown
}

func (brokenStore) InsertIfAbsent(context.Context, goGate.Principal) (bool, error) {
	return false, errBackendDown
}
