// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides the terminal building blocks shared by Agora's
// full-screen views: the color theme, a scrollbar, overlay splicing
// for menus and dialogs, a multi-line text editor, fuzzy filtering
// backed by fzf, markdown rendering for post bodies, and a fade-in
// tracker for items that arrive over a live stream.
//
// Components are plain values rendered to strings. The Bubble Tea
// model in lib/forumui owns them and routes input to whichever one has
// focus.
package tui
