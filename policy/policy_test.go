package policy

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func mustTable(t *testing.T, rules []Rule) *Table {
	t.Helper()
	table, err := NewTable(rules)
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}
	return table
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		path   string
		method Method
		public bool
		roles  []string
	}{
		{"/api/auth/login", MethodPost, true, nil},
		{"/api/auth/register", MethodPost, true, nil},
		{"/api/auth/me", MethodGet, false, nil},
		{"/login", MethodGet, true, nil},
		{"/css/site.css", MethodGet, true, nil},
		{"/actuator/health", MethodGet, true, nil},
		{"/employees", MethodGet, false, []string{"USER", "ADMIN"}},
		{"/employees/7/edit", MethodGet, false, []string{"USER", "ADMIN"}},
		{"/api/employees", MethodGet, false, []string{"USER", "ADMIN"}},
		{"/api/employees/42", MethodGet, false, []string{"USER", "ADMIN"}},
		{"/api/employees", MethodPost, false, []string{"ADMIN"}},
		{"/api/employees/42", MethodPut, false, []string{"ADMIN"}},
		{"/api/employees/42", MethodDelete, false, []string{"ADMIN"}},
		{"/api/departments", MethodGet, false, []string{"ADMIN"}},
		{"/api/departments/3", MethodPost, false, []string{"ADMIN"}},
		{"/api/admin/security-report", MethodGet, false, []string{"ADMIN"}},
		{"/api/statistics", MethodGet, false, nil},
		{"/", MethodGet, false, nil},
	}

	for _, tc := range cases {
		req := table.RequiredRoles(tc.path, tc.method)
		if req.Public != tc.public {
			t.Fatalf("%s %s: public = %v, want %v", tc.method, tc.path, req.Public, tc.public)
		}
		if len(req.Roles) != len(tc.roles) || (len(tc.roles) > 0 && !reflect.DeepEqual(req.Roles, tc.roles)) {
			t.Fatalf("%s %s: roles = %v, want %v", tc.method, tc.path, req.Roles, tc.roles)
		}
	}
}

func TestLongestPrefixWins(t *testing.T) {
	table := mustTable(t, []Rule{
		{Pattern: "/x/**", Roles: []string{"USER"}},
		{Pattern: "/x/admin/**", Roles: []string{"ADMIN"}},
	})

	if got := table.RequiredRoles("/x/admin/panel", MethodGet).Roles; !reflect.DeepEqual(got, []string{"ADMIN"}) {
		t.Fatalf("expected the longer prefix to win, got %v", got)
	}
	if got := table.RequiredRoles("/x/other", MethodGet).Roles; !reflect.DeepEqual(got, []string{"USER"}) {
		t.Fatalf("expected the shorter prefix for other paths, got %v", got)
	}
	if got := table.RequiredRoles("/x/administrator", MethodGet).Roles; !reflect.DeepEqual(got, []string{"USER"}) {
		t.Fatalf("prefix must match whole segments, got %v", got)
	}
}

func TestPriorityThenDeclarationOrder(t *testing.T) {
	table := mustTable(t, []Rule{
		{Pattern: "/r/**", Roles: []string{"FIRST"}},
		{Pattern: "/r/**", Roles: []string{"SECOND"}},
		{Pattern: "/r/**", Roles: []string{"BOOSTED"}, Priority: 5},
	})
	req := table.RequiredRoles("/r/a", MethodGet)
	if req.Index != 2 || req.Roles[0] != "BOOSTED" {
		t.Fatalf("expected higher priority to win, got %+v", req)
	}

	table = mustTable(t, []Rule{
		{Pattern: "/r/**", Roles: []string{"FIRST"}},
		{Pattern: "/r/**", Roles: []string{"SECOND"}},
	})
	req = table.RequiredRoles("/r/a", MethodGet)
	if req.Index != 0 || req.Roles[0] != "FIRST" {
		t.Fatalf("expected declaration order to break ties, got %+v", req)
	}
}

func TestLiteralLengthOutranksPriority(t *testing.T) {
	table := mustTable(t, []Rule{
		{Pattern: "/**", Roles: []string{"ADMIN"}, Priority: 100},
		{Pattern: "/docs/**", Public: true},
	})
	if !table.RequiredRoles("/docs/readme", MethodGet).Public {
		t.Fatal("longer literal prefix must outrank priority")
	}
	if got := table.RequiredRoles("/elsewhere", MethodGet).Roles; !reflect.DeepEqual(got, []string{"ADMIN"}) {
		t.Fatalf("catch-all should cover the rest, got %v", got)
	}
}

func TestMethodFiltering(t *testing.T) {
	table := mustTable(t, []Rule{
		{Pattern: "/items/**", Method: MethodGet, Roles: []string{"USER"}},
		{Pattern: "/items/**", Method: MethodAny, Roles: []string{"ADMIN"}},
	})
	if got := table.RequiredRoles("/items/1", MethodGet).Roles; got[0] != "USER" {
		t.Fatalf("GET: %v", got)
	}
	if got := table.RequiredRoles("/items/1", "patch").Roles; got[0] != "ADMIN" {
		t.Fatalf("PATCH should only match ANY rules: %v", got)
	}
}

func TestUnmatchedPathRequiresAuthentication(t *testing.T) {
	table := mustTable(t, nil)
	req := table.RequiredRoles("/anything", MethodGet)
	if req.Public || req.Rule != nil || req.Index != -1 {
		t.Fatalf("unexpected requirement %+v", req)
	}
	if req.Allows(nil) {
		t.Fatal("no roles means no principal")
	}
	if !req.Allows([]string{"USER"}) {
		t.Fatal("any role should satisfy the default requirement")
	}
}

func TestPathCleaningPreventsEscape(t *testing.T) {
	table := DefaultTable()
	for _, p := range []string{"/api/auth/../departments/1", "/api/auth/./../../api/departments", "//api//departments"} {
		req := table.RequiredRoles(p, MethodGet)
		if req.Public {
			t.Fatalf("%q escaped into a public rule", p)
		}
		if !reflect.DeepEqual(req.Roles, []string{"ADMIN"}) {
			t.Fatalf("%q: roles = %v", p, req.Roles)
		}
	}
}

func TestAllowsAnyOf(t *testing.T) {
	req := Requirement{Roles: []string{"USER", "ADMIN"}}
	if !req.Allows([]string{"ADMIN"}) {
		t.Fatal("ADMIN alone should satisfy USER|ADMIN")
	}
	if req.Allows([]string{"AUDITOR"}) {
		t.Fatal("AUDITOR must not satisfy USER|ADMIN")
	}
	if !(Requirement{Public: true}).Allows(nil) {
		t.Fatal("public requirement allows everyone")
	}
}

func TestNewTableRejectsInvalidRules(t *testing.T) {
	bad := [][]Rule{
		{{Pattern: "api"}},
		{{Pattern: "/a/*/b"}},
		{{Pattern: "/a/../b"}},
		{{Pattern: "/a", Method: "TRACE"}},
		{{Pattern: "/a", Roles: []string{" "}}},
		{{Pattern: "/a", Public: true, Roles: []string{"ADMIN"}}},
	}
	for i, rules := range bad {
		if _, err := NewTable(rules); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestRolesAreNormalized(t *testing.T) {
	table := mustTable(t, []Rule{{Pattern: "/a", Method: "get", Roles: []string{" admin "}}})
	rules := table.Rules()
	if rules[0].Method != MethodGet || rules[0].Roles[0] != "ADMIN" {
		t.Fatalf("unexpected normalized rule %+v", rules[0])
	}
}

func TestConcurrentLookups(t *testing.T) {
	table := DefaultTable()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if !table.RequiredRoles("/api/auth/login", MethodPost).Public {
					t.Error("expected public")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestLoadYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "policy.yaml")
	yamlDoc := `rules:
  - pattern: /public/**
    public: true
  - pattern: /x/**
    method: get
    roles: [user, admin]
  - pattern: /x/**
    roles: [ADMIN]
    priority: 1
`
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	tomlPath := filepath.Join(dir, "policy.toml")
	tomlDoc := `[[rules]]
pattern = "/public/**"
public = true

[[rules]]
pattern = "/x/**"
method = "GET"
roles = ["USER", "ADMIN"]

[[rules]]
pattern = "/x/**"
roles = ["ADMIN"]
priority = 1
`
	if err := os.WriteFile(tomlPath, []byte(tomlDoc), 0o600); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	for _, p := range []string{yamlPath, tomlPath} {
		table, err := Load(p)
		if err != nil {
			t.Fatalf("Load(%s) error: %v", p, err)
		}
		if table.Len() != 3 {
			t.Fatalf("%s: expected 3 rules, got %d", p, table.Len())
		}
		if !table.RequiredRoles("/public/a", MethodGet).Public {
			t.Fatalf("%s: expected public rule", p)
		}
		// priority 1 beats the GET rule at equal prefix length
		if got := table.RequiredRoles("/x/1", MethodGet).Roles; !reflect.DeepEqual(got, []string{"ADMIN"}) {
			t.Fatalf("%s: roles = %v", p, got)
		}
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := ParseYAML([]byte("rules:\n  - pattern: /a\n    role: ADMIN\n")); err == nil {
		t.Fatal("expected unknown yaml key to fail")
	}
	if _, err := ParseTOML([]byte("[[rules]]\npattern = \"/a\"\nrole = \"ADMIN\"\n")); err == nil {
		t.Fatal("expected unknown toml key to fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "policy.json")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func BenchmarkRequiredRoles(b *testing.B) {
	table := DefaultTable()
	b.ReportAllocs()
	for b.Loop() {
		if req := table.RequiredRoles("/api/employees/42", MethodDelete); req.Index < 0 {
			b.Fatal("no rule matched")
		}
	}
}
