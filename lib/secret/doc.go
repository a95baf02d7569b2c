// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps passwords and session cookies out of the Go
// heap while agora holds them.
//
// A [Buffer] is an anonymous mmap region locked into RAM (no swap) and
// excluded from core dumps. Close zeroes and unmaps it. Passwords read
// from the terminal or a --password-file, and decrypted session
// cookies, live in a Buffer until they are serialized into a request
// body.
package secret
