// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import (
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		override int
		def      int
		max      int
		want     int
	}{
		{"override wins when within max", 45, 30, 120, 45},
		{"override wins when no max", 200, 30, 0, 200},
		{"override above max falls back to default", 240, 30, 120, 30},
		{"no override uses default", 0, 60, 120, 60},
		{"default clamped to max", 0, 240, 120, 120},
		{"nothing set uses built-in default", 0, 0, 0, DefaultTimeoutMinutes},
		{"negative override ignored", -5, 60, 0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.override, tt.def, tt.max)
			if got.TimeoutMinutes != tt.want {
				t.Errorf("Resolve(%d, %d, %d) = %d, want %d",
					tt.override, tt.def, tt.max, got.TimeoutMinutes, tt.want)
			}
		})
	}
}

func TestSessionPolicy_Timeout(t *testing.T) {
	if got := (SessionPolicy{TimeoutMinutes: 30}).Timeout(); got != 30*time.Minute {
		t.Errorf("Timeout() = %v, want 30m", got)
	}

	// Missing or invalid policy falls back to the default silently.
	if got := (SessionPolicy{}).Timeout(); got != DefaultTimeoutMinutes*time.Minute {
		t.Errorf("zero policy Timeout() = %v, want %dm", got, DefaultTimeoutMinutes)
	}
	if got := (SessionPolicy{TimeoutMinutes: -1}).Timeout(); got != DefaultTimeoutMinutes*time.Minute {
		t.Errorf("negative policy Timeout() = %v, want %dm", got, DefaultTimeoutMinutes)
	}
}

func TestWarningLead(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"30m session gets flat 5m lead", 30 * time.Minute, 5 * time.Minute},
		{"10m session gets flat 5m lead", 10 * time.Minute, 5 * time.Minute},
		{"5m session warns at half", 5 * time.Minute, 150 * time.Second},
		{"2m session warns at half", 2 * time.Minute, time.Minute},
		{"1m session hits the 30s floor", time.Minute, 30 * time.Second},
		{"24s session clamps lead to full timeout", 24 * time.Second, 24 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WarningLead(tt.timeout); got != tt.want {
				t.Errorf("WarningLead(%v) = %v, want %v", tt.timeout, got, tt.want)
			}
		})
	}
}

// The lead must never exceed the timeout, whatever the input.
func TestWarningLead_NeverExceedsTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{
		time.Second, 10 * time.Second, 29 * time.Second, 31 * time.Second,
		time.Minute, 90 * time.Second, 5 * time.Minute, 6 * time.Minute, time.Hour,
	} {
		if lead := WarningLead(timeout); lead > timeout {
			t.Errorf("WarningLead(%v) = %v exceeds timeout", timeout, lead)
		}
	}
}
