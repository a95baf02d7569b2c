// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Scrollbar describes a scrollable region measured in rows.
type Scrollbar struct {
	Height  int // Rows available to draw the bar.
	Total   int // Rows of content.
	Visible int // Rows of content on screen.
	Offset  int // First visible content row.
}

// Thumb returns the first row and the length of the thumb. When the
// content fits, the thumb covers the whole track.
func (bar Scrollbar) Thumb() (start, length int) {
	if bar.Height <= 0 {
		return 0, 0
	}
	if bar.Total <= bar.Visible || bar.Total <= 0 {
		return 0, bar.Height
	}
	length = max(bar.Height*bar.Visible/bar.Total, 1)
	scrollable := bar.Total - bar.Visible
	track := bar.Height - length
	if track > 0 {
		start = min(bar.Offset, scrollable) * track / scrollable
	}
	if start+length > bar.Height {
		start = bar.Height - length
	}
	return max(start, 0), length
}

// Render draws a one-column bar. The thumb uses the focus accent when
// the pane is focused.
func (bar Scrollbar) Render(theme Theme, focused bool) string {
	if bar.Height <= 0 {
		return ""
	}
	thumbColor := theme.BorderColor
	if focused {
		thumbColor = theme.FocusAccent
	}
	track := lipgloss.NewStyle().Foreground(theme.BorderColor).Render("│")
	thumb := lipgloss.NewStyle().Foreground(thumbColor).Render("┃")

	start, length := bar.Thumb()
	lines := make([]string, bar.Height)
	for row := range lines {
		if row >= start && row < start+length {
			lines[row] = thumb
		} else {
			lines[row] = track
		}
	}
	return strings.Join(lines, "\n")
}
