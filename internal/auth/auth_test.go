// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelhq/satchel/internal/store"
)

func newTestAuth(t *testing.T) *Authenticator {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "satchel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"M.Dupont", "m.dupont"},
		{"  m.dupont  ", "m.dupont"},
		{"ｍ.ｄｕｐｏｎｔ", "m.dupont"}, // fullwidth forms fold under NFKC
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeUsername(tt.in); got != tt.want {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogin_Success(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, a.CreateUser(ctx, "M.Dupont", "correct horse battery", RoleTeacher, ""))

	sess, err := a.Login(ctx, "m.dupont", "correct horse battery", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.ID, "sess_"))
	assert.Equal(t, "m.dupont", sess.Username)
	assert.Equal(t, RoleTeacher, sess.Role)
	assert.WithinDuration(t, time.Now(), sess.StartedAt, 5*time.Second)

	// Case and whitespace in the login form are forgiven.
	_, err = a.Login(ctx, "  M.DUPONT ", "correct horse battery", "")
	assert.NoError(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, a.CreateUser(ctx, "m.dupont", "correct horse battery", RoleTeacher, ""))

	_, err := a.Login(ctx, "m.dupont", "wrong password", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownUserIndistinguishable(t *testing.T) {
	a := newTestAuth(t)

	_, err := a.Login(context.Background(), "ghost", "whatever-pass", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_TOTP(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	secret, err := GenerateTOTPSecret("a.rossi")
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	require.NoError(t, a.CreateUser(ctx, "a.rossi", "admin password 1", RoleAdmin, secret))

	// Missing code.
	_, err = a.Login(ctx, "a.rossi", "admin password 1", "")
	assert.ErrorIs(t, err, ErrTOTPRequired)

	// Bogus code.
	_, err = a.Login(ctx, "a.rossi", "admin password 1", "000000")
	assert.ErrorIs(t, err, ErrInvalidTOTP)

	// Valid code computed from the shared secret.
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	sess, err := a.Login(ctx, "a.rossi", "admin password 1", code)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, sess.Role)
}

func TestCreateUser_Validation(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.CreateUser(ctx, "m.dupont", "short", RoleTeacher, ""), ErrWeakPassword)
	assert.Error(t, a.CreateUser(ctx, "", "long enough password", RoleTeacher, ""))
	assert.Error(t, a.CreateUser(ctx, "m.dupont", "long enough password", "janitor", ""))
}

func TestCreateUser_Duplicate(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, a.CreateUser(ctx, "m.dupont", "long enough password", RoleTeacher, ""))
	err := a.CreateUser(ctx, "M.Dupont", "another password!", RoleTeacher, "")
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestHashPassword_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")

	h1 := HashPassword("password one", salt)
	h2 := HashPassword("password one", salt)
	h3 := HashPassword("password two", salt)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, KeySize)
}

func TestSessionIDsAreUnique(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, a.CreateUser(ctx, "m.dupont", "long enough password", RoleTeacher, ""))

	s1, err := a.Login(ctx, "m.dupont", "long enough password", "")
	require.NoError(t, err)
	s2, err := a.Login(ctx, "m.dupont", "long enough password", "")
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
}
