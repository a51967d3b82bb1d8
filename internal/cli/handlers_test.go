// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/store"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(out)
}

func setGlobalWithMax(t *testing.T, maxMinutes int) {
	t.Helper()
	config.ResetGlobalForTesting()
	t.Cleanup(config.ResetGlobalForTesting)
	cfg := config.Default()
	cfg.Session.MaxTimeoutMinutes = maxMinutes
	config.SetGlobal(cfg)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "satchel.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUserTimeout_NoCapDoesNotWarn(t *testing.T) {
	setGlobalWithMax(t, 0)
	st := openTestStore(t)

	out := captureStdout(t, func() {
		if err := userTimeout(st, NewArgParser([]string{"timeout", "m.dupont", "999"})); err != nil {
			t.Errorf("userTimeout: %v", err)
		}
	})

	if strings.Contains(out, "warning") {
		t.Errorf("warned despite no configured maximum:\n%s", out)
	}
}

func TestUserTimeout_WarnsAboveCap(t *testing.T) {
	setGlobalWithMax(t, 60)
	st := openTestStore(t)

	out := captureStdout(t, func() {
		if err := userTimeout(st, NewArgParser([]string{"timeout", "m.dupont", "90"})); err != nil {
			t.Errorf("userTimeout: %v", err)
		}
	})

	if !strings.Contains(out, "warning") {
		t.Errorf("expected a warning for 90 > 60:\n%s", out)
	}
}
