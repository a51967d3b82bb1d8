// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides local persistence for user accounts and session
// preferences, backed by SQLite.
//
// The preferences table is the local cache of the filing service's profile
// data: the session monitor reads the timeout preference through it, falls
// back to the configured default while the profile has not synced yet, and
// picks up new values at its next reset.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a user or preference does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when creating a user that already exists.
	ErrDuplicate = errors.New("record already exists")
)

// =============================================================================
// TYPES
// =============================================================================

// User is a locally provisioned account.
type User struct {
	Username     string
	Role         string
	PasswordHash []byte
	PasswordSalt []byte
	TOTPSecret   string
	CreatedAt    time.Time
}

// =============================================================================
// STORE
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	role          TEXT NOT NULL DEFAULT 'teacher',
	password_hash BLOB NOT NULL,
	password_salt BLOB NOT NULL,
	totp_secret   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
	username                TEXT PRIMARY KEY,
	session_timeout_minutes INTEGER NOT NULL,
	updated_at              TIMESTAMP NOT NULL
);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, role, password_hash, password_salt, totp_secret, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Role, u.PasswordHash, u.PasswordSalt, u.TOTPSecret, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser fetches an account by username.
func (s *Store) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, role, password_hash, password_salt, totp_secret, created_at
		 FROM users WHERE username = ?`, username).
		Scan(&u.Username, &u.Role, &u.PasswordHash, &u.PasswordSalt, &u.TOTPSecret, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// DeleteUser removes an account and its preferences.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM preferences WHERE username = ?`, username)
	return nil
}

// =============================================================================
// SESSION TIMEOUT PREFERENCES
// =============================================================================

// SetTimeoutPreference stores a per-user session timeout override in minutes.
func (s *Store) SetTimeoutPreference(ctx context.Context, username string, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", minutes)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (username, session_timeout_minutes, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
		   session_timeout_minutes = excluded.session_timeout_minutes,
		   updated_at = excluded.updated_at`,
		username, minutes, time.Now())
	if err != nil {
		return fmt.Errorf("set timeout preference: %w", err)
	}
	return nil
}

// TimeoutPreference returns the per-user override in minutes, or ErrNotFound
// when the user has never set one.
func (s *Store) TimeoutPreference(ctx context.Context, username string) (int, error) {
	var minutes int
	err := s.db.QueryRowContext(ctx,
		`SELECT session_timeout_minutes FROM preferences WHERE username = ?`, username).
		Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("preference for %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get timeout preference: %w", err)
	}
	return minutes, nil
}

// ClearTimeoutPreference removes the per-user override so the system default
// applies again.
func (s *Store) ClearTimeoutPreference(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("clear timeout preference: %w", err)
	}
	return nil
}

// isUniqueViolation detects a primary key conflict without importing
// driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
