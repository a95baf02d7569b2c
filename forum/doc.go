// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package forum is the Go client for the Agora forum API.
//
// The API is a FastAPI service reached over HTTP (REST, JSON and
// multipart bodies) and WebSocket (live chat messages and post
// comments). Authentication is cookie based: a successful login sets
// an access_token cookie and a refresh_token cookie, and every later
// request carries both.
//
// # Client and Session
//
// [Client] is unauthenticated and safe for concurrent use. It reads
// the public parts of the forum: the post feed, single posts, comment
// pages, user lists, user profiles and search.
//
// [Session] embeds a Client whose transport carries the auth cookies.
// It adds everything that needs a signed-in user: profile edits,
// password changes, posts, likes, chats and the realtime streams.
// Sessions come from [Client.Login] or, for a saved login,
// [Client.Resume]. When a request fails with 401 and the session
// holds a refresh token, the session exchanges it for new cookies once
// and retries the request.
//
// # Pagination
//
// Every list endpoint returns the envelope {items, total, page, size,
// pages}, decoded as [Page]. [Feed] turns a list endpoint into a
// forward infinite scroll (the post feed, search results, user lists).
// [History] walks a list backwards from its newest page, which is how
// chat and comment threads are shown.
//
// # Streams
//
// [Session.OpenChatStream] and [Session.OpenCommentStream] subscribe
// to one conversation or one post. Frames are delivered in receipt
// order on a channel. A stream does not reconnect; when it ends,
// [ChatStream.Err] or [CommentStream.Err] reports why.
//
// # Errors
//
// Non-2xx responses are returned as [*APIError] carrying the status
// code and the server's "detail" text. [IsStatus], [IsUnauthorized]
// and [IsNotFound] classify them. Client-side outcomes the server
// reports ambiguously have sentinels: [ErrNoConversation],
// [ErrWrongPassword], [ErrNothingChanged].
package forum
