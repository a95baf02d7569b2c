// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds HTTP and WebSocket I/O helpers shared by the
// forum client, the fake backend and the CLI.
//
// Response readers cap every JSON body at [MaxResponseSize] so a
// misbehaving server cannot exhaust memory. [IsExpectedCloseError]
// separates an ordinary stream shutdown (peer close, context
// cancellation, EOF) from a failure worth logging.
package netutil
