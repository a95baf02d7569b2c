// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package forumtest runs an in-memory forum backend for tests.
//
// [Server] implements the REST routes and the two websocket channels
// (/ws/chats/{id} and /ws/posts/{id}) the client speaks, with the same
// response shapes, pagination envelope and status codes as the real
// API. Sessions are HS256 JWTs in access_token and refresh_token
// cookies; passwords are stored as bcrypt hashes. Token expiry follows
// the server's clock, so tests can expire a session by advancing a
// [clock.FakeClock].
//
// Tests seed state directly (SeedUser, SeedPost, SeedComment,
// SeedMessage), inspect it afterwards (Post, Messages, Comments,
// Requests), and can inject a failure into the next request with
// FailNext.
package forumtest
