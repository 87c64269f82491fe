package goGate_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/store"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterThenLogin(t *testing.T) {
	e := newTestEngine(t)

	p := mustRegister(t, e, "alice", "secret1", "ADMIN")
	if p.Username != "alice" || !reflect.DeepEqual(p.Roles, []string{"ADMIN"}) {
		t.Fatalf("unexpected principal %+v", p)
	}
	if p.PasswordHash != "" {
		t.Fatal("Register must not return the password hash")
	}

	res := mustLogin(t, e, "alice", "secret1")
	if res.Username != "alice" || !reflect.DeepEqual(res.Roles, []string{"ADMIN"}) {
		t.Fatalf("unexpected login result %+v", res)
	}
	if res.TokenType != "Bearer" || strings.Count(res.Token, ".") != 2 {
		t.Fatalf("unexpected token %q (%s)", res.Token, res.TokenType)
	}
	if !res.ExpiresAt.Equal(testEpoch.Add(testConfig().JWT.AccessTTL)) {
		t.Fatalf("ExpiresAt = %v", res.ExpiresAt)
	}

	claims, err := e.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "alice" || !claims.HasRole("ADMIN") {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestStoredHashIsNotPassword(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "secret1", "")

	stored, err := e.store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") || strings.Contains(stored.PasswordHash, "secret1") {
		t.Fatalf("unexpected stored hash %q", stored.PasswordHash)
	}
}

func TestRegisterRoleHandling(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		user string
		role string
		want []string
	}{
		{"u1", "", []string{"USER"}},
		{"u2", "   ", []string{"USER"}},
		{"u3", "admin", []string{"ADMIN"}},
		{"u4", "User", []string{"USER"}},
	}
	for _, tc := range cases {
		p := mustRegister(t, e, tc.user, "secret1", tc.role)
		if !reflect.DeepEqual(p.Roles, tc.want) {
			t.Fatalf("role %q: got %v, want %v", tc.role, p.Roles, tc.want)
		}
	}

	_, err := e.Register(context.Background(), "u5", "secret1", "SUPERUSER")
	if !errors.Is(err, goGate.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	var roleErr *goGate.InvalidRoleError
	if !errors.As(err, &roleErr) || roleErr.Role != "SUPERUSER" {
		t.Fatalf("expected *InvalidRoleError, got %T", err)
	}
	if err.Error() != "Invalid role: SUPERUSER. Allowed roles: ADMIN, USER" {
		t.Fatalf("message = %q", err.Error())
	}
	if exists, _ := e.store.ExistsByUsername(context.Background(), "u5"); exists {
		t.Fatal("rejected registration must not be stored")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "secret1", "ADMIN")

	_, err := e.Register(context.Background(), "alice", "other-pass", "USER")
	if !errors.Is(err, goGate.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
	if err.Error() != "Username already exists: alice" {
		t.Fatalf("message = %q", err.Error())
	}

	// usernames are case-sensitive
	mustRegister(t, e, "Alice", "secret1", "")
}

func TestRegisterDuplicateBeatsInvalidRole(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "secret1", "")

	_, err := e.Register(context.Background(), "alice", "secret1", "ROOT")
	if !errors.Is(err, goGate.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate to be reported first, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name, user, pw string
	}{
		{"empty username", "", "secret1"},
		{"padded username", " alice", "secret1"},
		{"long username", strings.Repeat("a", 65), "secret1"},
		{"empty password", "alice", ""},
		{"short password", "alice", "12345"},
		{"huge password", "alice", strings.Repeat("x", 1025)},
	}
	for _, tc := range cases {
		_, err := e.Register(context.Background(), tc.user, tc.pw, "")
		if !errors.Is(err, goGate.ErrInvalidRegistration) {
			t.Fatalf("%s: expected ErrInvalidRegistration, got %v", tc.name, err)
		}
	}
	if e.store.Len() != 0 {
		t.Fatalf("nothing should be stored, got %d", e.store.Len())
	}
}

func TestConcurrentRegistrationHasOneWinner(t *testing.T) {
	e := newTestEngine(t)

	const workers = 12
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.Register(context.Background(), "carol", "secret1", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, goGate.ErrDuplicateUsername):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 || duplicates != workers-1 {
		t.Fatalf("successes=%d duplicates=%d", successes, duplicates)
	}
	if e.store.Len() != 1 {
		t.Fatalf("expected exactly one stored principal, got %d", e.store.Len())
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	e := newTestEngine(t)
	mustRegister(t, e, "alice", "secret1", "")

	_, wrongPassword := e.Login(context.Background(), "alice", "nope-nope")
	_, unknownUser := e.Login(context.Background(), "mallory", "secret1")
	_, emptyPassword := e.Login(context.Background(), "alice", "")

	for _, err := range []error{wrongPassword, unknownUser, emptyPassword} {
		if !errors.Is(err, goGate.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPassword, unknownUser)
	}
	if got := e.MetricsSnapshot().Counters[goGate.MetricLoginFailure]; got != 3 {
		t.Fatalf("login failure counter = %d", got)
	}
}

func TestStoreFailureIsInternal(t *testing.T) {
	engine, err := goGate.New().WithConfig(testConfig()).WithStore(brokenStore{}).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	_, err = engine.Login(context.Background(), "alice", "secret1")
	if errors.Is(err, goGate.ErrInvalidCredentials) {
		t.Fatal("store failure must not look like bad credentials")
	}
	if !errors.Is(err, goGate.ErrStoreUnavailable) || !goGate.IsInternal(err) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.Is(err, errBackendDown) {
		t.Fatal("cause should stay wrapped")
	}

	_, err = engine.Register(context.Background(), "alice", "secret1", "")
	if !errors.Is(err, goGate.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Register, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[goGate.MetricLoginInternalError]; got != 1 {
		t.Fatalf("internal error counter = %d", got)
	}
}

func TestLegacyHashUpgradedOnLogin(t *testing.T) {
	e := newTestEngine(t)

	legacy, err := bcrypt.GenerateFromPassword([]byte("user123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	ok, err := e.store.InsertIfAbsent(context.Background(), goGate.Principal{
		Username:     "user",
		PasswordHash: string(legacy),
		Roles:        []string{"USER"},
	})
	if err != nil || !ok {
		t.Fatalf("seed legacy principal: %v", err)
	}

	mustLogin(t, e, "user", "user123")

	stored, _ := e.store.FindByUsername(context.Background(), "user")
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("hash not upgraded: %q", stored.PasswordHash)
	}
	mustLogin(t, e, "user", "user123")
	if got := e.MetricsSnapshot().Counters[goGate.MetricPasswordRehashed]; got != 1 {
		t.Fatalf("rehash counter = %d", got)
	}
}

func TestLoginHonoursCancelledContext(t *testing.T) {
	e := newTestEngine(t, func(b *goGate.Builder) {
		cfg := testConfig()
		cfg.Password.MaxConcurrent = 1
		b.WithConfig(cfg)
	})
	mustRegister(t, e, "alice", "secret1", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Login(ctx, "alice", "secret1")
	if err == nil || errors.Is(err, goGate.ErrInvalidCredentials) {
		t.Fatalf("expected a context error, got %v", err)
	}
}

func TestMemoryStoreSatisfiesUpdater(t *testing.T) {
	var _ goGate.PasswordUpdater = store.NewMemory()
}
