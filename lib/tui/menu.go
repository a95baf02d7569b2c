// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// MenuOption is one selectable entry in a Menu.
type MenuOption struct {
	Label string
	Value string
}

// Menu is a floating list of actions anchored at a screen position,
// used for per-item actions such as editing or deleting a post. It
// wraps around at both ends.
type Menu struct {
	Title   string
	Options []MenuOption
	Cursor  int
}

// MoveUp moves the cursor up by one, wrapping to the bottom.
func (menu *Menu) MoveUp() {
	if len(menu.Options) == 0 {
		return
	}
	menu.Cursor = (menu.Cursor - 1 + len(menu.Options)) % len(menu.Options)
}

// MoveDown moves the cursor down by one, wrapping to the top.
func (menu *Menu) MoveDown() {
	if len(menu.Options) == 0 {
		return
	}
	menu.Cursor = (menu.Cursor + 1) % len(menu.Options)
}

// Selected returns the highlighted option.
func (menu *Menu) Selected() MenuOption {
	return menu.Options[menu.Cursor]
}

// Width is the rendered width in columns: one column of padding on
// each side, a two-column cursor marker, then the widest label.
func (menu *Menu) Width() int {
	widest := ansi.StringWidth(menu.Title)
	for _, option := range menu.Options {
		widest = max(widest, ansi.StringWidth(option.Label)+2)
	}
	return widest + 2
}

// Render returns the menu lines, all of the same width, ready for
// SpliceOverlay.
func (menu *Menu) Render(theme Theme) []string {
	innerWidth := menu.Width() - 2
	background := lipgloss.NewStyle().
		Foreground(theme.OverlayForeground).
		Background(theme.OverlayBackground)
	selected := lipgloss.NewStyle().
		Foreground(theme.SelectedForeground).
		Background(theme.SelectedBackground)

	var lines []string
	if menu.Title != "" {
		title := background.Bold(true).Render(menu.Title)
		lines = append(lines, PadLine(title, innerWidth, background))
	}
	for index, option := range menu.Options {
		if index == menu.Cursor {
			content := "> " + option.Label
			content += strings.Repeat(" ", max(innerWidth-ansi.StringWidth(content), 0))
			lines = append(lines, selected.Render(" "+content+" "))
			continue
		}
		lines = append(lines, PadLine(background.Render("  "+option.Label), innerWidth, background))
	}
	return lines
}
