// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Agora is the command-line client for the Agora forum.
//
// Commands cover the whole API: posts, comments, likes, users, search,
// chats and the signed-in profile. "agora tui" opens a full-screen
// browser built on the same client. The session is saved after "agora
// login" so later commands run without asking for the password again.
//
// Exit codes follow the error category: 2 invalid input, 3 not found,
// 4 not signed in, 5 forbidden, 6 conflict, 7 transient failure, and 1
// for anything else.
package main
