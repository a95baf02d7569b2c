// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is agora's CBOR configuration, used for everything the
// client writes to its local cache database.
//
// JSON stays the format for the forum API and for --json CLI output.
// CBOR is used only for on-disk cache entries and drafts, where the
// deterministic encoding lets identical payloads produce identical
// bytes. Types that travel both ways keep their `json` tags; fxamacker
// reads them when no `cbor` tag is present.
package codec
