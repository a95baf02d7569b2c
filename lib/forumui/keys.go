// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forumui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings of the forum TUI.
type KeyMap struct {
	// Navigation within the current screen.
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Open     key.Binding // Open the selected post, user or chat.
	Back     key.Binding // Close the current screen.

	// Top-level screens.
	TabFeed    key.Binding
	TabSearch  key.Binding
	TabUsers   key.Binding
	TabChats   key.Binding
	TabProfile key.Binding

	// Actions on the selection.
	Like    key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Author  key.Binding // Open the profile of the selected item's author.
	Message key.Binding // Open a chat with the selected user.
	Reply   key.Binding // Focus the comment or message input.
	Older   key.Binding // Load older comments or messages.
	Filter  key.Binding
	Compose key.Binding // Write a new post.
	Refresh key.Binding

	// Forms.
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	Cancel    key.Binding

	// SwitchForm flips between the login and registration forms.
	SwitchForm key.Binding

	Login  key.Binding
	Logout key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the built-in key binding set. Vim-style navigation
// (j/k) alongside the arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("Esc", "back"),
	),
	TabFeed: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "feed"),
	),
	TabSearch: key.NewBinding(
		key.WithKeys("2", "/"),
		key.WithHelp("2", "search"),
	),
	TabUsers: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "users"),
	),
	TabChats: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "chats"),
	),
	TabProfile: key.NewBinding(
		key.WithKeys("5"),
		key.WithHelp("5", "profile"),
	),
	Like: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "like"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Author: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "author"),
	),
	Message: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "message"),
	),
	Reply: key.NewBinding(
		key.WithKeys("i", "r"),
		key.WithHelp("i", "write"),
	),
	Older: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "older"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "filter"),
	),
	Compose: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new post"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "reload"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("S-Tab", "previous field"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "submit"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "cancel"),
	),
	SwitchForm: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "register/log in"),
	),
	Login: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "log in"),
	),
	Logout: key.NewBinding(
		key.WithKeys("O"),
		key.WithHelp("O", "log out"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
