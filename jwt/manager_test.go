package jwt

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var epoch = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, clock abtime.AbstractTime) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Hour, Clock: clock})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

// atClock returns a manager sharing the secret and TTL but reading time from at.
func atClock(t *testing.T, at time.Time) *Manager {
	return newTestManager(t, abtime.NewManualAtTime(at))
}

func signRaw(t *testing.T, method gjwt.SigningMethod, claims gjwt.Claims, key interface{}) string {
	t.Helper()
	token, err := gjwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestIssueValidateRoundTrip(t *testing.T) {
	m := atClock(t, epoch)

	for _, roles := range [][]string{{"ADMIN"}, {"USER"}, {"ADMIN", "USER"}} {
		token, err := m.Issue("alice", roles)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if strings.Count(token, ".") != 2 {
			t.Fatalf("expected three segments, got %q", token)
		}

		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if claims.Subject != "alice" {
			t.Fatalf("subject = %q", claims.Subject)
		}
		if !reflect.DeepEqual(claims.Roles, roles) {
			t.Fatalf("roles = %v, want %v", claims.Roles, roles)
		}
		if !claims.IssuedAt.Time.Equal(epoch) {
			t.Fatalf("iat = %v, want %v", claims.IssuedAt.Time, epoch)
		}
		if !claims.ExpiresAt.Time.Equal(epoch.Add(time.Hour)) {
			t.Fatalf("exp = %v", claims.ExpiresAt.Time)
		}
		if claims.ID == "" {
			t.Fatal("expected jti")
		}
	}
}

func TestIssueWithExpiryMatchesClaim(t *testing.T) {
	m := atClock(t, epoch)
	token, exp, err := m.IssueWithExpiry("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("exp = %v", exp)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !claims.ExpiresAt.Time.Equal(exp) {
		t.Fatalf("claim exp %v != returned %v", claims.ExpiresAt.Time, exp)
	}
}

func TestIssueRejectsEmptySubjectOrRoles(t *testing.T) {
	m := atClock(t, epoch)
	if _, err := m.Issue("", []string{"USER"}); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
	if _, err := m.Issue("alice", nil); err == nil {
		t.Fatal("expected empty roles to be rejected")
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	token, err := atClock(t, epoch).Issue("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := atClock(t, epoch.Add(time.Hour-time.Millisecond)).Validate(token); err != nil {
		t.Fatalf("expected token valid just before expiry: %v", err)
	}

	_, err = atClock(t, epoch.Add(time.Hour+time.Millisecond)).Validate(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired just after expiry, got %v", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatal("expired must wrap ErrInvalidToken")
	}
}

func TestValidateAtExactExpiry(t *testing.T) {
	token, exp, err := atClock(t, epoch).IssueWithExpiry("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := atClock(t, exp).Validate(token); err != nil {
		t.Fatalf("expected token valid at exactly exp: %v", err)
	}
	if _, err := atClock(t, exp.Add(time.Nanosecond)).Validate(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired right after exp, got %v", err)
	}
}

func TestSubSecondIssuanceNeverExpiresEarly(t *testing.T) {
	issuedAt := epoch.Add(700 * time.Millisecond)
	token, exp, err := atClock(t, issuedAt).IssueWithExpiry("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if exp.Before(issuedAt.Add(time.Hour)) {
		t.Fatalf("exp %v is before issuedAt+TTL %v", exp, issuedAt.Add(time.Hour))
	}
	if !exp.Equal(epoch.Add(time.Hour + time.Second)) {
		t.Fatalf("exp = %v, want rounded up to the next second", exp)
	}

	for _, at := range []time.Time{
		issuedAt.Add(time.Hour - 200*time.Millisecond),
		issuedAt.Add(time.Hour),
		exp,
	} {
		if _, err := atClock(t, at).Validate(token); err != nil {
			t.Fatalf("validate at %v: %v", at, err)
		}
	}
	if _, err := atClock(t, exp.Add(time.Millisecond)).Validate(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after exp, got %v", err)
	}
}

func TestValidateLeeway(t *testing.T) {
	token, err := atClock(t, epoch).Issue("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m, err := NewManager(Config{
		Secret: testSecret,
		TTL:    time.Hour,
		Leeway: 30 * time.Second,
		Clock:  abtime.NewManualAtTime(epoch.Add(time.Hour + 10*time.Second)),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Validate(token); err != nil {
		t.Fatalf("expected leeway to absorb skew: %v", err)
	}
}

func TestSingleBitFlipNeverValidates(t *testing.T) {
	m := atClock(t, epoch)
	token, err := m.Issue("alice", []string{"ADMIN"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	payloadStart := strings.Index(token, ".") + 1
	for i := payloadStart; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			mutated := []byte(token)
			mutated[i] ^= 1 << bit

			_, err := m.Validate(string(mutated))
			if err == nil {
				t.Fatalf("flip byte %d bit %d validated", i, bit)
			}
			if !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrBadSignature) {
				t.Fatalf("flip byte %d bit %d: unexpected kind %v", i, bit, err)
			}
		}
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token := signRaw(t, gjwt.SigningMethodHS256, AccessClaims{
		Roles: []string{"ADMIN"},
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "mallory",
			ExpiresAt: gjwt.NewNumericDate(epoch.Add(time.Hour)),
		},
	}, []byte("another-secret-another-secret-xx"))

	if _, err := atClock(t, epoch).Validate(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestForgedTokenIsBadSignatureWhateverItsShape(t *testing.T) {
	wrongKey := []byte("another-secret-another-secret-xx")
	exp := epoch.Add(time.Hour).Unix()

	forged := map[string]gjwt.Claims{
		"roles not array": gjwt.MapClaims{"sub": "mallory", "roles": "ADMIN", "exp": exp},
		"exp not number":  gjwt.MapClaims{"sub": "mallory", "roles": []string{"ADMIN"}, "exp": "never"},
		"no claims":       gjwt.MapClaims{},
	}
	m := atClock(t, epoch)
	for name, claims := range forged {
		token := signRaw(t, gjwt.SigningMethodHS256, claims, wrongKey)
		if _, err := m.Validate(token); !errors.Is(err, ErrBadSignature) {
			t.Fatalf("%s: expected ErrBadSignature, got %v", name, err)
		}
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	claims := AccessClaims{
		Roles: []string{"ADMIN"},
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "mallory",
			ExpiresAt: gjwt.NewNumericDate(epoch.Add(time.Hour)),
		},
	}
	m := atClock(t, epoch)

	hs512 := signRaw(t, gjwt.SigningMethodHS512, claims, testSecret)
	if _, err := m.Validate(hs512); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected HS512 to be rejected as bad signature, got %v", err)
	}

	none := signRaw(t, gjwt.SigningMethodNone, claims, gjwt.UnsafeAllowNoneSignatureType)
	none += "c2ln" // give the empty signature segment some bytes
	if _, err := m.Validate(none); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected alg=none to be rejected as bad signature, got %v", err)
	}
}

func TestValidateRequiresClaims(t *testing.T) {
	m := atClock(t, epoch)
	exp := gjwt.NewNumericDate(epoch.Add(time.Hour))

	cases := map[string]gjwt.Claims{
		"missing subject": AccessClaims{Roles: []string{"USER"}, RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: exp}},
		"missing roles":   AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "a", ExpiresAt: exp}},
		"empty role":      AccessClaims{Roles: []string{""}, RegisteredClaims: gjwt.RegisteredClaims{Subject: "a", ExpiresAt: exp}},
		"missing exp":     AccessClaims{Roles: []string{"USER"}, RegisteredClaims: gjwt.RegisteredClaims{Subject: "a"}},
		"roles not array": gjwt.MapClaims{"sub": "a", "roles": "ADMIN", "exp": exp.Unix()},
		"exp not number":  gjwt.MapClaims{"sub": "a", "roles": []string{"ADMIN"}, "exp": "tomorrow"},
	}
	for name, claims := range cases {
		token := signRaw(t, gjwt.SigningMethodHS256, claims, testSecret)
		if _, err := m.Validate(token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestValidateRejectsBadStructure(t *testing.T) {
	m := atClock(t, epoch)
	for _, token := range []string{"", "abc", "a.b", "a..c", ".b.c", "a.b.", "a.b.c.d", "!!!.@@@.###"} {
		if _, err := m.Validate(token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", token, err)
		}
	}
}

func TestValidateIssuerMismatch(t *testing.T) {
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Hour, Issuer: "goGate", Clock: abtime.NewManualAtTime(epoch)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token := signRaw(t, gjwt.SigningMethodHS256, AccessClaims{
		Roles: []string{"USER"},
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "a",
			Issuer:    "someone-else",
			ExpiresAt: gjwt.NewNumericDate(epoch.Add(time.Hour)),
		},
	}, testSecret)
	if _, err := m.Validate(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected issuer mismatch to be malformed, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short"), TTL: time.Hour}); err == nil {
		t.Fatal("expected short secret to fail")
	}
	if _, err := NewManager(Config{Secret: testSecret}); err == nil {
		t.Fatal("expected zero TTL to fail")
	}
	if _, err := NewManager(Config{Secret: testSecret, TTL: time.Hour, Leeway: time.Hour}); err == nil {
		t.Fatal("expected oversized leeway to fail")
	}
}

func TestSecretIsCopied(t *testing.T) {
	secret := append([]byte(nil), testSecret...)
	m, err := NewManager(Config{Secret: secret, TTL: time.Hour, Clock: abtime.NewManualAtTime(epoch)})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.Issue("alice", []string{"USER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	secret[0] ^= 0xFF
	if _, err := m.Validate(token); err != nil {
		t.Fatalf("caller mutation leaked into manager: %v", err)
	}
}

func TestKind(t *testing.T) {
	m := atClock(t, epoch)
	_, err := m.Validate("a.b")
	if Kind(err) != ErrMalformed {
		t.Fatalf("Kind = %v", Kind(err))
	}
	if Kind(errors.New("other")) != nil {
		t.Fatal("non-token errors have no kind")
	}
}

func BenchmarkValidate(b *testing.B) {
	m, err := NewManager(Config{Secret: testSecret, TTL: time.Hour, Clock: abtime.NewManualAtTime(epoch)})
	if err != nil {
		b.Fatalf("new manager: %v", err)
	}
	token, err := m.Issue("alice", []string{"ADMIN", "USER"})
	if err != nil {
		b.Fatalf("issue: %v", err)
	}

	b.ReportAllocs()
	for b.Loop() {
		if _, err := m.Validate(token); err != nil {
			b.Fatal(err)
		}
	}
}
