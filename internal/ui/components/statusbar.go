// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/satchelhq/satchel/internal/ui/styles"
	"github.com/satchelhq/satchel/internal/util"
)

// StatusBar renders the single-line footer: signed-in user on the left,
// countdown (while the warning is up) and shortcuts on the right.
type StatusBar struct {
	username  string
	remaining time.Duration
	warning   bool
	width     int
}

// NewStatusBar creates a status bar for the given user.
func NewStatusBar(username string) StatusBar {
	return StatusBar{username: username}
}

// SetWidth sets the render width.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetWarning toggles the countdown segment.
func (s *StatusBar) SetWarning(active bool, remaining time.Duration) {
	s.warning = active
	s.remaining = remaining
}

// View renders the status bar.
func (s StatusBar) View() string {
	width := s.width
	if width == 0 {
		width = 80
	}

	left := styles.StatusIndicators.Active + " " + s.username
	leftRendered := lipgloss.NewStyle().
		Foreground(styles.Blue).
		Background(styles.SurfaceDim).
		Bold(true).
		Padding(0, 1).
		Render(left)

	right := "q quit"
	if s.warning {
		right = styles.StatusIndicators.Warning + " sign-out in " + FormatCountdown(s.remaining)
	}
	rightStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Background(styles.SurfaceDim).
		Padding(0, 1)
	if s.warning {
		rightStyle = rightStyle.Foreground(styles.Amber).Bold(true)
	}
	rightRendered := rightStyle.Render(right)

	gap := width - lipgloss.Width(leftRendered) - lipgloss.Width(rightRendered)
	if gap < 1 {
		gap = 1
	}
	filler := lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Render(util.PadRight("", gap))

	return leftRendered + filler + rightRendered
}
