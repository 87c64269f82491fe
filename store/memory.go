package store

import (
	"context"
	"sync"

	goGate "github.com/MrEthical07/goGate"
)

// Memory keeps principals in process memory. It suits tests and
// single-instance demos; data is lost on exit.
type Memory struct {
	mu         sync.RWMutex
	principals map[string]goGate.Principal
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{principals: make(map[string]goGate.Principal)}
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*goGate.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[username]
	if !ok {
		return nil, goGate.ErrPrincipalNotFound
	}
	p.Roles = append([]string(nil), p.Roles...)
	return &p, nil
}

func (m *Memory) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.principals[username]
	return ok, nil
}

func (m *Memory) InsertIfAbsent(_ context.Context, principal goGate.Principal) (bool, error) {
	if err := checkPrincipal(principal); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.principals[principal.Username]; ok {
		return false, nil
	}
	principal.Roles = append([]string(nil), principal.Roles...)
	m.principals[principal.Username] = principal
	return true, nil
}

func (m *Memory) UpdatePasswordHash(_ context.Context, username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[username]
	if !ok {
		return goGate.ErrPrincipalNotFound
	}
	p.PasswordHash = hash
	m.principals[username] = p
	return nil
}

// Len returns the number of stored principals.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.principals)
}
