package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	goGate "github.com/MrEthical07/goGate"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS principals (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	roles         TEXT NOT NULL,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
) STRICT;
`

// SQLite persists principals in a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	s, err := NewSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an open database and applies the schema.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("migrating sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) FindByUsername(ctx context.Context, username string) (*goGate.Principal, error) {
	var (
		p     goGate.Principal
		roles string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT username, password_hash, roles FROM principals WHERE username = ?", username,
	).Scan(&p.Username, &p.PasswordHash, &roles)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goGate.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("querying principal: %w", err)
	}
	if p.Roles, err = decodeRoles(roles); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLite) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM principals WHERE username = ?", username).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying principal: %w", err)
	}
	return true, nil
}

func (s *SQLite) InsertIfAbsent(ctx context.Context, principal goGate.Principal) (bool, error) {
	if err := checkPrincipal(principal); err != nil {
		return false, err
	}
	roles, err := encodeRoles(principal.Roles)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO principals (username, password_hash, roles) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		principal.Username, principal.PasswordHash, roles,
	)
	if err != nil {
		return false, fmt.Errorf("inserting principal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting principal: %w", err)
	}
	return n == 1, nil
}

func (s *SQLite) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE principals SET password_hash = ? WHERE username = ?", hash, username)
	if err != nil {
		return fmt.Errorf("updating principal: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return goGate.ErrPrincipalNotFound
	}
	return nil
}
