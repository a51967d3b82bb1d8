// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the satchel TUI.
package components

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/satchelhq/satchel/internal/ui/styles"
)

// =============================================================================
// TIMEOUT OVERLAY
// =============================================================================

// TimeoutOverlay displays a warning when the session is about to expire
// and a final notice once it has. While the warning is showing, the user
// can stay signed in or sign out immediately.
type TimeoutOverlay struct {
	visible       bool
	timeRemaining time.Duration
	expired       bool

	width  int
	height int
}

// NewTimeoutOverlay creates a hidden timeout overlay.
func NewTimeoutOverlay() TimeoutOverlay {
	return TimeoutOverlay{}
}

// =============================================================================
// STATE MANAGEMENT
// =============================================================================

// SetSize sets the overlay dimensions.
func (o *TimeoutOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the overlay with the given time remaining.
func (o *TimeoutOverlay) Show(remaining time.Duration) {
	o.visible = true
	o.timeRemaining = remaining
	o.expired = remaining <= 0
}

// Hide hides the overlay.
func (o *TimeoutOverlay) Hide() {
	o.visible = false
	o.expired = false
}

// UpdateTime updates the countdown display.
func (o *TimeoutOverlay) UpdateTime(remaining time.Duration) {
	o.timeRemaining = remaining
	if remaining <= 0 {
		o.expired = true
	}
}

// MarkExpired switches the overlay to the signed-out notice.
func (o *TimeoutOverlay) MarkExpired() {
	o.visible = true
	o.expired = true
	o.timeRemaining = 0
}

// IsVisible returns whether the overlay is currently visible.
func (o *TimeoutOverlay) IsVisible() bool {
	return o.visible
}

// IsExpired returns whether the session has expired.
func (o *TimeoutOverlay) IsExpired() bool {
	return o.expired
}

// TimeRemaining returns the displayed time remaining.
func (o *TimeoutOverlay) TimeRemaining() time.Duration {
	return o.timeRemaining
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// WarningMsg signals the session is about to expire.
type WarningMsg struct {
	Remaining time.Duration
}

// CountdownTickMsg carries the updated countdown value, once per second.
type CountdownTickMsg struct {
	Remaining time.Duration
}

// ExpiredMsg signals the session has expired.
type ExpiredMsg struct{}

// ExtendRequestedMsg signals the user chose to stay signed in.
type ExtendRequestedMsg struct{}

// LogoutRequestedMsg signals the user chose to sign out from the warning.
type LogoutRequestedMsg struct{}

// Init implements tea.Model (no-op for overlays).
func (o TimeoutOverlay) Init() tea.Cmd {
	return nil
}

// Update handles messages for the overlay.
func (o TimeoutOverlay) Update(msg tea.Msg) (TimeoutOverlay, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		o.width = msg.Width
		o.height = msg.Height

	case tea.KeyMsg:
		if o.visible && !o.expired {
			// "o" signs out from the warning, anything else keeps the
			// session alive.
			if msg.String() == "o" {
				o.Hide()
				return o, func() tea.Msg { return LogoutRequestedMsg{} }
			}
			o.Hide()
			return o, func() tea.Msg { return ExtendRequestedMsg{} }
		}

	case WarningMsg:
		o.Show(msg.Remaining)

	case CountdownTickMsg:
		if o.visible {
			o.UpdateTime(msg.Remaining)
		}

	case ExpiredMsg:
		o.MarkExpired()
	}

	return o, nil
}

// View renders the overlay, or an empty string when hidden.
func (o TimeoutOverlay) View() string {
	if !o.visible {
		return ""
	}

	if o.expired {
		return o.viewExpired()
	}
	return o.viewWarning()
}

// =============================================================================
// RENDER METHODS
// =============================================================================

func (o TimeoutOverlay) boxWidth() int {
	width := o.width
	if width == 0 {
		width = 60
	}
	maxWidth := width - 8
	if maxWidth < 40 {
		maxWidth = 40
	}
	if maxWidth > 60 {
		maxWidth = 60
	}
	return maxWidth
}

func (o TimeoutOverlay) viewWarning() string {
	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}
	maxWidth := o.boxWidth()

	timeStr := FormatCountdown(o.timeRemaining)

	var parts []string

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)
	parts = append(parts, titleStyle.Render(styles.StatusIndicators.Warning+" Still there?"))

	parts = append(parts, "")

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true)

	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 4).
		Align(lipgloss.Center)

	parts = append(parts, msgStyle.Render(
		"You will be signed out in "+timeStyle.Render(timeStr)))

	parts = append(parts, "")

	hintStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true).
		Align(lipgloss.Center)
	parts = append(parts, hintStyle.Render("Press any key to stay signed in, or o to sign out now"))

	content := lipgloss.JoinVertical(lipgloss.Center, parts...)

	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center)

	box := boxStyle.Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

func (o TimeoutOverlay) viewExpired() string {
	width := o.width
	if width == 0 {
		width = 60
	}
	height := o.height
	if height == 0 {
		height = 24
	}
	maxWidth := o.boxWidth()

	var parts []string

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.Rose).
		Bold(true)
	parts = append(parts, titleStyle.Render(styles.StatusIndicators.Error+" Signed out"))

	parts = append(parts, "")

	msgStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(maxWidth - 4).
		Align(lipgloss.Center)
	parts = append(parts, msgStyle.Render(
		"You were signed out because of inactivity."))

	parts = append(parts, "")

	exitStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Align(lipgloss.Center)
	parts = append(parts, exitStyle.Render("Unsaved filing drafts were kept on this device."))

	content := lipgloss.JoinVertical(lipgloss.Center, parts...)

	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Rose).
		Padding(1, 3).
		Width(maxWidth).
		Align(lipgloss.Center)

	box := boxStyle.Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// FormatCountdown formats a duration as MM:SS for display. Negative values
// render as 00:00.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalSecs := int(d.Seconds())
	mins := totalSecs / 60
	secs := totalSecs % 60

	return fmt.Sprintf("%02d:%02d", mins, secs)
}
