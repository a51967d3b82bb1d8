// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/satchelhq/satchel/internal/util"
)

// TruncateLine shortens a single line to fit the given display width,
// appending "..." when it was cut.
func TruncateLine(s string, maxWidth int) string {
	return util.TruncateWidth(s, maxWidth)
}

// CenterLines centers every line of a block within the given width.
func CenterLines(block string, width int) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lineWidth := lipgloss.Width(line)
		if lineWidth >= width {
			continue
		}
		pad := (width - lineWidth) / 2
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}
