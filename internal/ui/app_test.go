// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/monitor"
)

// newShellApp builds an App already on the filing shell with a running
// monitor, bypassing login.
func newShellApp(t *testing.T) App {
	t.Helper()
	config.ResetGlobalForTesting()
	config.SetGlobal(config.Default())
	t.Cleanup(config.ResetGlobalForTesting)

	a := App{screen: ScreenShell}
	a.mon = monitor.New(monitor.Config{
		Schedule: func() (time.Duration, time.Duration) {
			return time.Hour, time.Minute
		},
		Throttle: time.Millisecond,
	})
	a.mon.Start()
	t.Cleanup(a.mon.Stop)
	return a
}

func TestMouseWheelAndMotionDoNotCountAsActivity(t *testing.T) {
	a := newShellApp(t)
	before := a.mon.LastActivity()

	time.Sleep(5 * time.Millisecond)
	a.Update(tea.MouseMsg{Type: tea.MouseWheelUp})
	a.Update(tea.MouseMsg{Type: tea.MouseWheelDown})
	a.Update(tea.MouseMsg{Type: tea.MouseMotion})

	if got := a.mon.LastActivity(); !got.Equal(before) {
		t.Errorf("wheel/motion events advanced last activity from %v to %v", before, got)
	}
}

func TestMouseClickCountsAsActivity(t *testing.T) {
	a := newShellApp(t)
	before := a.mon.LastActivity()

	time.Sleep(5 * time.Millisecond)
	a.Update(tea.MouseMsg{Type: tea.MouseLeft})

	if got := a.mon.LastActivity(); !got.After(before) {
		t.Error("left click did not register as activity")
	}
}

func TestShellKeyCountsAsActivity(t *testing.T) {
	a := newShellApp(t)
	before := a.mon.LastActivity()

	time.Sleep(5 * time.Millisecond)
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})

	if got := a.mon.LastActivity(); !got.After(before) {
		t.Error("keystroke did not register as activity")
	}
}
