// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the agora binary.
//
// A [Command] tree dispatches on the first positional argument,
// parses flags with pflag (generated from tagged parameter structs by
// [BindFlags]) and suggests the nearest command or flag on a typo.
// Failures are returned as categorized [ToolError] values whose
// category selects the exit code; [FromAPIError] derives the category
// from forum client errors.
//
// [SessionStore] persists the login between invocations, optionally
// sealing the cookies with age, and [Prompter] reads passwords from
// the terminal without echo.
package cli
