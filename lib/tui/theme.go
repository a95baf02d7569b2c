// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for Agora's terminal UI. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	FocusAccent      lipgloss.Color

	// Social accents.
	LikeColor     lipgloss.Color // Filled heart on liked posts.
	TagForeground lipgloss.Color // "#tag" labels.
	AuthorColor   lipgloss.Color // Usernames.

	// Chat bubbles: messages written by the signed-in user are tinted.
	OwnMessageBackground lipgloss.Color

	// Feedback.
	ErrorText   lipgloss.Color
	SuccessText lipgloss.Color

	// Fresh item glow (live messages and comments).
	HotAccent lipgloss.Color

	// Fuzzy filter match highlighting.
	MatchForeground lipgloss.Color

	// Links in rendered markdown.
	LinkForeground lipgloss.Color

	// Modal and menu surfaces.
	OverlayForeground lipgloss.Color
	OverlayBackground lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	FocusAccent:      lipgloss.Color("220"), // amber

	LikeColor:     lipgloss.Color("204"), // pink
	TagForeground: lipgloss.Color("75"),  // blue
	AuthorColor:   lipgloss.Color("114"), // green

	OwnMessageBackground: lipgloss.Color("235"),

	ErrorText:   lipgloss.Color("196"),
	SuccessText: lipgloss.Color("114"),

	HotAccent: lipgloss.Color("58"), // dark amber background tint

	MatchForeground: lipgloss.Color("220"),

	LinkForeground: lipgloss.Color("75"),

	OverlayForeground: lipgloss.Color("252"),
	OverlayBackground: lipgloss.Color("237"),
}

// LightTheme suits terminals with a light background.
var LightTheme = Theme{
	NormalText: lipgloss.Color("235"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("254"),
	SelectedForeground: lipgloss.Color("232"),

	HeaderForeground: lipgloss.Color("232"),
	BorderColor:      lipgloss.Color("248"),
	HelpText:         lipgloss.Color("244"),
	FocusAccent:      lipgloss.Color("130"),

	LikeColor:     lipgloss.Color("161"),
	TagForeground: lipgloss.Color("25"),
	AuthorColor:   lipgloss.Color("28"),

	OwnMessageBackground: lipgloss.Color("255"),

	ErrorText:   lipgloss.Color("160"),
	SuccessText: lipgloss.Color("28"),

	HotAccent: lipgloss.Color("230"),

	MatchForeground: lipgloss.Color("130"),

	LinkForeground: lipgloss.Color("25"),

	OverlayForeground: lipgloss.Color("235"),
	OverlayBackground: lipgloss.Color("253"),
}

// ThemeByName returns the named theme ("dark" or "light"). Unknown
// names fall back to DefaultTheme.
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme
	}
	return DefaultTheme
}
