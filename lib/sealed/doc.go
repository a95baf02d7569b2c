// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts the cookies in agora's session file with
// filippo.io/age.
//
// Sealing is opt-in: when the config names an age identity file, the
// session's access and refresh cookies are encrypted to that identity's
// X25519 recipient before they touch disk, and decrypted into a
// [secret.Buffer] when a command loads the session. Ciphertext is
// base64 so it fits in the session JSON.
//
// [GenerateIdentityFile] backs "agora session keygen".
package sealed
