// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// SpliceOverlay replaces a rectangular region of a rendered view with
// overlay lines placed at (anchorX, anchorY). Truncation is ANSI-aware
// so styling on both sides of the overlay survives.
func SpliceOverlay(view string, overlay []string, anchorX, anchorY int) string {
	if len(overlay) == 0 {
		return view
	}
	viewLines := strings.Split(view, "\n")
	overlayWidth := ansi.StringWidth(overlay[0])

	for index, overlayLine := range overlay {
		row := anchorY + index
		if row < 0 || row >= len(viewLines) {
			continue
		}
		line := viewLines[row]
		lineWidth := ansi.StringWidth(line)

		var spliced strings.Builder
		if anchorX > 0 {
			prefix := ansi.Truncate(line, anchorX, "")
			spliced.WriteString(prefix)
			if gap := anchorX - ansi.StringWidth(prefix); gap > 0 {
				spliced.WriteString(strings.Repeat(" ", gap))
			}
		}
		spliced.WriteString("\x1b[0m")
		spliced.WriteString(overlayLine)
		spliced.WriteString("\x1b[0m")
		if suffixStart := anchorX + overlayWidth; suffixStart < lineWidth {
			spliced.WriteString(ansi.TruncateLeft(line, suffixStart, ""))
		}
		viewLines[row] = spliced.String()
	}
	return strings.Join(viewLines, "\n")
}

// CenterOverlay splices overlay lines into the middle of a view of the
// given size.
func CenterOverlay(view string, overlay []string, width, height int) string {
	if len(overlay) == 0 {
		return view
	}
	overlayWidth := ansi.StringWidth(overlay[0])
	anchorX := max((width-overlayWidth)/2, 0)
	anchorY := max((height-len(overlay))/2, 0)
	return SpliceOverlay(view, overlay, anchorX, anchorY)
}

// PadLine pads styled content to width columns using the background
// style, with one column of padding on each side.
func PadLine(content string, innerWidth int, background lipgloss.Style) string {
	pad := max(innerWidth-ansi.StringWidth(content), 0)
	return background.Render(" ") + content + background.Render(strings.Repeat(" ", pad+1))
}

// Excerpt returns up to maxLines non-blank lines of body, each cut to
// maxWidth columns. Feed cards use it to preview post content.
func Excerpt(body string, maxWidth, maxLines int) []string {
	var lines []string
	for line := range strings.SplitSeq(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if ansi.StringWidth(trimmed) > maxWidth {
			trimmed = ansi.Truncate(trimmed, maxWidth, "…")
		}
		lines = append(lines, trimmed)
		if len(lines) >= maxLines {
			break
		}
	}
	return lines
}

// FitWidth truncates or pads a styled line to exactly width columns.
func FitWidth(line string, width int) string {
	lineWidth := ansi.StringWidth(line)
	if lineWidth > width {
		return ansi.Truncate(line, width, "…")
	}
	return line + strings.Repeat(" ", width-lineWidth)
}
