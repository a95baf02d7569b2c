// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache is the client's local SQLite store. It keeps the last
// successful body of every GET request so views can still render when
// the forum is unreachable, and it keeps unsent post drafts.
//
// Response keys are BLAKE3 keyed hashes of the request line, so the
// database never holds request URLs in its index. Bodies are
// compressed with zstd or lz4 when that makes them smaller. Drafts are
// CBOR records.
//
// Connections come from a fixed-size zombiezen pool with WAL
// journaling, so the CLI and a running TUI can share one database
// file.
package cache
