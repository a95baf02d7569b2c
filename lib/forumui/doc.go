// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package forumui implements Agora's full-screen terminal interface.
// Built on bubbletea (Elm architecture), it keeps a stack of screens:
// the post feed, post detail with live comments, search, users,
// profiles, conversations and chats, the post composer, and the login
// and registration forms. The number keys switch between the top-level
// screens; Esc goes back.
//
// All data comes from a [forum.Client], or a [forum.Session] when
// signed in. API calls run as tea.Cmd functions and report back
// through messages addressed to the screen that issued them, so a
// reply arriving after its screen was closed is dropped. Live streams
// are read the same way: one pending command per stream, re-armed
// after every delivered frame.
//
// Log records are routed into the program with [LogHandler] and shown
// in the status bar instead of being written over the alternate
// screen.
//
// Data flow:
//
//	[forum API + websockets]
//	        | (tea.Cmd)
//	    [Model] <- bubbletea event loop
//	        |
//	  [terminal output]
package forumui
