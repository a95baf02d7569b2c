// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by agora's tests.
//
// [RequireReceive], [RequireSend] and [RequireClosed] wrap a channel
// operation in a wall-clock timeout so a broken stream test fails
// instead of hanging. [UniqueID] produces distinct message bodies and
// usernames for tests that share one fake backend.
package testutil
