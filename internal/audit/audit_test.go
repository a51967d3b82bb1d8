// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad log line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestLog_WritesJSONLines(t *testing.T) {
	l, path := newTestLogger(t)

	if err := l.LogLogin("sess_1", "m.dupont"); err != nil {
		t.Fatalf("LogLogin failed: %v", err)
	}
	if err := l.LogSessionWarning("sess_1", "m.dupont", 5*time.Minute); err != nil {
		t.Fatalf("LogSessionWarning failed: %v", err)
	}
	if err := l.LogSessionExpired("sess_1", "m.dupont"); err != nil {
		t.Fatalf("LogSessionExpired failed: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].EventType != EventLogin || !events[0].Success {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].EventType != EventSessionWarning {
		t.Errorf("expected warning event, got %s", events[1].EventType)
	}
	if events[1].Metadata["remaining"] != "5m0s" {
		t.Errorf("expected remaining metadata, got %v", events[1].Metadata)
	}
	if events[2].Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestLog_RedactsSecrets(t *testing.T) {
	l, path := newTestLogger(t)

	if err := l.LogLoginFailed("m.dupont", "rejected password=hunter2 by server"); err != nil {
		t.Fatalf("LogLoginFailed failed: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if strings.Contains(events[0].Error, "hunter2") {
		t.Errorf("password leaked into audit log: %q", events[0].Error)
	}
	if !strings.Contains(events[0].Error, "[PASSWORD_REDACTED]") {
		t.Errorf("expected redaction marker, got %q", events[0].Error)
	}
}

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"password: secret123", "[PASSWORD_REDACTED]"},
		{"Authorization: Bearer abc.def.ghi", "Authorization: Bearer [TOKEN_REDACTED]"},
		{"nothing sensitive here", "nothing sensitive here"},
	}
	for _, tt := range tests {
		if got := RedactSecrets(tt.in); got != tt.want {
			t.Errorf("RedactSecrets(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRotate_KeepsOldFile(t *testing.T) {
	l, path := newTestLogger(t)

	if err := l.LogLogin("sess_1", "m.dupont"); err != nil {
		t.Fatalf("LogLogin failed: %v", err)
	}
	if err := l.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if err := l.LogLogin("sess_2", "a.rossi"); err != nil {
		t.Fatalf("LogLogin after rotate failed: %v", err)
	}

	// New file has only the post-rotation event.
	events := readEvents(t, path)
	if len(events) != 1 || events[0].SessionID != "sess_2" {
		t.Fatalf("unexpected post-rotation events: %+v", events)
	}

	// A rotated file with the original event exists alongside.
	matches, err := filepath.Glob(strings.TrimSuffix(path, ".log") + "_*.log")
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one rotated file, got %v (err %v)", matches, err)
	}
	old := readEvents(t, matches[0])
	if len(old) != 1 || old[0].SessionID != "sess_1" {
		t.Fatalf("unexpected rotated events: %+v", old)
	}
}

func TestRotate_SizeThreshold(t *testing.T) {
	l, path := newTestLogger(t)
	l.SetMaxSize(64) // tiny, so the second write triggers rotation

	if err := l.LogLogin("sess_1", "m.dupont"); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := l.LogLogin("sess_2", "a.rossi"); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	matches, _ := filepath.Glob(strings.TrimSuffix(path, ".log") + "_*.log")
	if len(matches) == 0 {
		t.Fatal("expected size-based rotation to produce a rotated file")
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	if l.IsEnabled() {
		t.Error("nop logger should report disabled")
	}
	if err := l.LogSessionEnded("sess_1", "m.dupont"); err != nil {
		t.Errorf("nop logger returned error: %v", err)
	}

	var nilLogger *Logger
	if err := nilLogger.Log(Event{EventType: EventSessionEnded}); err != nil {
		t.Errorf("nil logger returned error: %v", err)
	}
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil logger Close returned error: %v", err)
	}
}

func TestToLogLine(t *testing.T) {
	e := Event{
		Timestamp: time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC),
		EventType: EventSessionExpired,
		SessionID: "sess_abc",
		Username:  "m.dupont",
		Success:   true,
	}
	got := e.ToLogLine()
	want := "2026-03-09 14:30:00 | SESSION_EXPIRED | sess_abc | m.dupont | SUCCESS"
	if got != want {
		t.Errorf("ToLogLine = %q, want %q", got, want)
	}

	e.Success = false
	e.Error = "server unreachable"
	if !strings.HasSuffix(e.ToLogLine(), "ERROR: server unreachable") {
		t.Errorf("expected error suffix, got %q", e.ToLogLine())
	}
}
