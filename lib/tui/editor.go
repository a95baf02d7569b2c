// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Editor is a small multi-line text editor for post content and
// comments. Lines soft-wrap at render time; the stored text keeps only
// the newlines the user typed.
type Editor struct {
	lines   [][]rune
	cursorY int
	cursorX int
	limit   int
}

// NewEditor returns an empty editor. A positive limit caps the number
// of runes the editor accepts.
func NewEditor(limit int) Editor {
	return Editor{lines: [][]rune{{}}, limit: limit}
}

// SetValue replaces the content and moves the cursor to the end.
func (editor *Editor) SetValue(value string) {
	editor.lines = nil
	for line := range strings.SplitSeq(value, "\n") {
		editor.lines = append(editor.lines, []rune(line))
	}
	editor.cursorY = len(editor.lines) - 1
	editor.cursorX = len(editor.lines[editor.cursorY])
}

// Value returns the text.
func (editor Editor) Value() string {
	parts := make([]string, len(editor.lines))
	for index, line := range editor.lines {
		parts[index] = string(line)
	}
	return strings.Join(parts, "\n")
}

// Len is the number of runes stored, counting newlines.
func (editor Editor) Len() int {
	total := len(editor.lines) - 1
	for _, line := range editor.lines {
		total += len(line)
	}
	return total
}

// Reset clears the content.
func (editor *Editor) Reset() {
	editor.lines = [][]rune{{}}
	editor.cursorY, editor.cursorX = 0, 0
}

// Update applies one key press.
func (editor *Editor) Update(message tea.KeyMsg) {
	switch message.Type {
	case tea.KeyRunes, tea.KeySpace:
		for _, character := range message.Runes {
			editor.insert(character)
		}
	case tea.KeyEnter:
		editor.splitLine()
	case tea.KeyBackspace:
		editor.backspace()
	case tea.KeyDelete:
		line := editor.lines[editor.cursorY]
		if editor.cursorX < len(line) {
			editor.lines[editor.cursorY] = slices.Delete(line, editor.cursorX, editor.cursorX+1)
		} else if editor.cursorY < len(editor.lines)-1 {
			editor.lines[editor.cursorY] = append(line, editor.lines[editor.cursorY+1]...)
			editor.lines = slices.Delete(editor.lines, editor.cursorY+1, editor.cursorY+2)
		}
	case tea.KeyLeft:
		if editor.cursorX > 0 {
			editor.cursorX--
		} else if editor.cursorY > 0 {
			editor.cursorY--
			editor.cursorX = len(editor.lines[editor.cursorY])
		}
	case tea.KeyRight:
		if editor.cursorX < len(editor.lines[editor.cursorY]) {
			editor.cursorX++
		} else if editor.cursorY < len(editor.lines)-1 {
			editor.cursorY++
			editor.cursorX = 0
		}
	case tea.KeyUp:
		if editor.cursorY > 0 {
			editor.cursorY--
			editor.cursorX = min(editor.cursorX, len(editor.lines[editor.cursorY]))
		}
	case tea.KeyDown:
		if editor.cursorY < len(editor.lines)-1 {
			editor.cursorY++
			editor.cursorX = min(editor.cursorX, len(editor.lines[editor.cursorY]))
		}
	case tea.KeyHome, tea.KeyCtrlA:
		editor.cursorX = 0
	case tea.KeyEnd, tea.KeyCtrlE:
		editor.cursorX = len(editor.lines[editor.cursorY])
	}
}

func (editor *Editor) insert(character rune) {
	if editor.limit > 0 && editor.Len() >= editor.limit {
		return
	}
	editor.lines[editor.cursorY] = slices.Insert(editor.lines[editor.cursorY], editor.cursorX, character)
	editor.cursorX++
}

func (editor *Editor) splitLine() {
	if editor.limit > 0 && editor.Len() >= editor.limit {
		return
	}
	line := editor.lines[editor.cursorY]
	before := slices.Clone(line[:editor.cursorX])
	after := slices.Clone(line[editor.cursorX:])
	editor.lines[editor.cursorY] = before
	editor.lines = slices.Insert(editor.lines, editor.cursorY+1, after)
	editor.cursorY++
	editor.cursorX = 0
}

func (editor *Editor) backspace() {
	if editor.cursorX > 0 {
		editor.lines[editor.cursorY] = slices.Delete(editor.lines[editor.cursorY], editor.cursorX-1, editor.cursorX)
		editor.cursorX--
		return
	}
	if editor.cursorY == 0 {
		return
	}
	previous := editor.lines[editor.cursorY-1]
	editor.cursorX = len(previous)
	editor.lines[editor.cursorY-1] = append(previous, editor.lines[editor.cursorY]...)
	editor.lines = slices.Delete(editor.lines, editor.cursorY, editor.cursorY+1)
	editor.cursorY--
}

// Render draws the text soft-wrapped at width, scrolled so the cursor
// row is visible, padded to exactly height rows. The cursor is drawn
// only when focused.
func (editor Editor) Render(theme Theme, width, height int, focused bool) []string {
	if width < 1 || height < 1 {
		return nil
	}
	text := lipgloss.NewStyle().Foreground(theme.NormalText)
	cursor := lipgloss.NewStyle().Reverse(true)

	var rows []string
	cursorRow := 0
	for lineIndex, line := range editor.lines {
		for start := 0; ; start += width {
			end := min(start+width, len(line))
			segment := line[start:end]
			hasCursor := focused && lineIndex == editor.cursorY &&
				editor.cursorX >= start && (editor.cursorX < end || (editor.cursorX == end && end == len(line) && len(segment) < width))
			if hasCursor {
				cursorRow = len(rows)
				offset := editor.cursorX - start
				row := text.Render(string(segment[:offset]))
				if offset < len(segment) {
					row += cursor.Render(string(segment[offset])) + text.Render(string(segment[offset+1:]))
				} else {
					row += cursor.Render(" ")
				}
				rows = append(rows, row)
			} else {
				rows = append(rows, text.Render(string(segment)))
			}
			if end >= len(line) {
				if focused && lineIndex == editor.cursorY && editor.cursorX == len(line) && len(segment) == width {
					cursorRow = len(rows)
					rows = append(rows, cursor.Render(" "))
				}
				break
			}
		}
	}

	scroll := 0
	if cursorRow >= height {
		scroll = cursorRow - height + 1
	}
	visible := make([]string, height)
	for index := range visible {
		if scroll+index < len(rows) {
			visible[index] = FitWidth(rows[scroll+index], width)
		} else {
			visible[index] = strings.Repeat(" ", width)
		}
	}
	return visible
}
