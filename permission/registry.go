package permission

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

const (
	// RoleUser is assigned when registration names no role.
	RoleUser = "USER"
	// RoleAdmin grants administrative routes.
	RoleAdmin = "ADMIN"
)

// ErrUnknownRole is returned by Normalize for names outside the vocabulary.
var ErrUnknownRole = errors.New("unknown role")

// Registry is the vocabulary of role names a principal may hold.
//
// Names are stored upper-case and compared case-insensitively on input.
// Register is only allowed before Freeze; lookups are safe at any time.
type Registry struct {
	mu          sync.RWMutex
	names       map[string]struct{}
	defaultRole string
	frozen      bool
}

// NewRegistry returns a registry holding defaultRole, which Normalize
// substitutes for an empty request.
func NewRegistry(defaultRole string) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{})}
	if err := r.Register(defaultRole); err != nil {
		return nil, err
	}
	r.defaultRole = canonical(defaultRole)
	return r, nil
}

// DefaultRegistry holds USER and ADMIN with USER as default. It is frozen.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(RoleUser)
	_ = r.Register(RoleAdmin)
	r.Freeze()
	return r
}

// Register adds name to the vocabulary.
func (r *Registry) Register(name string) error {
	name = canonical(name)
	if name == "" {
		return errors.New("role name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if _, exists := r.names[name]; exists {
		return errors.New("role already registered")
	}
	r.names[name] = struct{}{}
	return nil
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Has reports whether name is a known role.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[canonical(name)]
	return ok
}

// Default returns the role assigned when none is requested.
func (r *Registry) Default() string {
	return r.defaultRole
}

// Normalize maps a requested role to its canonical name. Blank input yields
// the default role; anything else must be registered.
func (r *Registry) Normalize(requested string) (string, error) {
	name := canonical(requested)
	if name == "" {
		return r.defaultRole, nil
	}
	if !r.Has(name) {
		return "", ErrUnknownRole
	}
	return name, nil
}

// Names returns the vocabulary in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of registered roles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// SortRoles returns roles upper-cased, de-duplicated and sorted, so a
// principal's role set has one stable representation.
func SortRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = canonical(role)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

func canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
