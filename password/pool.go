package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many hash or verify computations run at once so a burst
// of logins cannot starve latency-sensitive work of CPU and memory.
type Pool struct {
	hasher *Argon2
	sem    *semaphore.Weighted
}

// NewPool wraps hasher with a limit of maxConcurrent in-flight operations.
// A non-positive limit defaults to GOMAXPROCS.
func NewPool(hasher *Argon2, maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Hash waits for a slot and hashes password. It returns ctx.Err() if the
// context ends before a slot frees up.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	return p.hasher.Hash(password)
}

// Verify waits for a slot and verifies password against encodedHash.
func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	return p.hasher.Verify(password, encodedHash), nil
}

// NeedsUpgrade is cheap and does not take a slot.
func (p *Pool) NeedsUpgrade(encodedHash string) bool {
	return p.hasher.NeedsUpgrade(encodedHash)
}
