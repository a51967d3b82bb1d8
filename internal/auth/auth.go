// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides local account verification for the satchel client.
//
// Accounts are provisioned locally (the filing service remains the source of
// truth for roles); passwords are stored as PBKDF2-SHA256 hashes and admins
// may additionally carry a TOTP second factor. Token refresh against the
// filing service is out of scope here.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"

	"github.com/satchelhq/satchel/internal/store"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// SaltSize is the salt length for password hashing.
	SaltSize = 32

	// KeySize is the derived hash length.
	KeySize = 32

	// PBKDF2Iterations follows current OWASP guidance for PBKDF2-SHA256.
	PBKDF2Iterations = 600_000

	// MinPasswordLength rejects trivially weak passwords at provisioning.
	MinPasswordLength = 8
)

// Roles understood by the client. Administrators approve teacher accounts on
// the service side; locally the role only gates the TOTP requirement.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials covers unknown users and wrong passwords alike,
	// so a login probe cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrTOTPRequired means the account has a second factor and no code was
	// supplied.
	ErrTOTPRequired = errors.New("verification code required")

	// ErrInvalidTOTP means the supplied code did not verify.
	ErrInvalidTOTP = errors.New("invalid verification code")

	// ErrWeakPassword is returned at provisioning time.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// =============================================================================
// SESSION
// =============================================================================

// Session describes a signed-in user. The session monitor owns its lifetime:
// it is created on successful login and discarded on sign-out or expiry.
type Session struct {
	ID        string
	Username  string
	Role      string
	StartedAt time.Time
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

// Authenticator verifies credentials against the local store.
type Authenticator struct {
	store *store.Store
}

// New creates an Authenticator backed by the given store.
func New(st *store.Store) *Authenticator {
	return &Authenticator{store: st}
}

// NormalizeUsername canonicalizes user input before lookup: NFKC folds
// homoglyph variants, and usernames are case-insensitive.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// HashPassword derives the stored hash for a password and salt.
func HashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// CreateUser provisions a local account. If totpSecret is non-empty the user
// must present a matching code at every login.
func (a *Authenticator) CreateUser(ctx context.Context, username, password, role, totpSecret string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return errors.New("username must not be empty")
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if role != RoleTeacher && role != RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}

	return a.store.CreateUser(ctx, store.User{
		Username:     username,
		Role:         role,
		PasswordHash: HashPassword(password, salt),
		PasswordSalt: salt,
		TOTPSecret:   totpSecret,
	})
}

// Login verifies credentials and returns a fresh session. The returned
// session carries a random UUID so audit entries from different sign-ins are
// distinguishable.
func (a *Authenticator) Login(ctx context.Context, username, password, totpCode string) (*Session, error) {
	username = NormalizeUsername(username)

	u, err := a.store.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so user enumeration via timing is
			// harder.
			HashPassword(password, make([]byte, SaltSize))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	candidate := HashPassword(password, u.PasswordSalt)
	if subtle.ConstantTimeCompare(candidate, u.PasswordHash) != 1 {
		return nil, ErrInvalidCredentials
	}

	if u.TOTPSecret != "" {
		if totpCode == "" {
			return nil, ErrTOTPRequired
		}
		if !totp.Validate(totpCode, u.TOTPSecret) {
			return nil, ErrInvalidTOTP
		}
	}

	return &Session{
		ID:        "sess_" + uuid.NewString(),
		Username:  u.Username,
		Role:      u.Role,
		StartedAt: time.Now(),
	}, nil
}

// GenerateTOTPSecret provisions a new TOTP key for an account and returns the
// secret to be transferred into the user's authenticator app.
func GenerateTOTPSecret(username string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "satchel",
		AccountName: NormalizeUsername(username),
	})
	if err != nil {
		return "", fmt.Errorf("generate TOTP secret: %w", err)
	}
	return key.Secret(), nil
}
