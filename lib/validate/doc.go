// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate holds the client-side checks run on forms before
// they are submitted: registration, login, posts, profile edits,
// password changes, account deletion, messages and comments.
//
// Every check returns [Errors], an ordered list of field-keyed
// messages that is empty when the input is acceptable. The messages
// are written for end users and are shown verbatim by the terminal UI
// and the CLI.
package validate
