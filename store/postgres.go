package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS principals (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	roles         TEXT[] NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres persists principals through a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close releases the pool.
func (s *Postgres) Close() {
	if s == nil || s.Pool == nil {
		return
	}
	s.Pool.Close()
}

func (s *Postgres) FindByUsername(ctx context.Context, username string) (*goGate.Principal, error) {
	var p goGate.Principal
	err := s.Pool.QueryRow(ctx,
		"SELECT username, password_hash, roles FROM principals WHERE username = $1", username,
	).Scan(&p.Username, &p.PasswordHash, &p.Roles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goGate.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("query principal: %w", err)
	}
	return &p, nil
}

func (s *Postgres) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM principals WHERE username = $1)", username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query principal: %w", err)
	}
	return exists, nil
}

func (s *Postgres) InsertIfAbsent(ctx context.Context, principal goGate.Principal) (bool, error) {
	if err := checkPrincipal(principal); err != nil {
		return false, err
	}
	tag, err := s.Pool.Exec(ctx, `
INSERT INTO principals (username, password_hash, roles)
VALUES ($1, $2, $3)
ON CONFLICT (username) DO NOTHING`,
		principal.Username, principal.PasswordHash, principal.Roles,
	)
	if err != nil {
		return false, fmt.Errorf("insert principal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	tag, err := s.Pool.Exec(ctx,
		"UPDATE principals SET password_hash = $1 WHERE username = $2", hash, username)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goGate.ErrPrincipalNotFound
	}
	return nil
}
