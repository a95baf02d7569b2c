// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"

	"github.com/agora-forum/agora/lib/secret"
)

// Identity is a parsed age X25519 identity. The private key string is
// held in a secret.Buffer; Close releases it.
type Identity struct {
	privateKey *secret.Buffer
	recipient  string
}

// Recipient returns the public "age1..." string matching the identity.
func (i *Identity) Recipient() string { return i.recipient }

// Close releases the private key memory.
func (i *Identity) Close() error {
	if i.privateKey == nil {
		return nil
	}
	return i.privateKey.Close()
}

// LoadIdentityFile reads the first X25519 identity from an age identity
// file (the format written by age-keygen: comment lines, then one
// AGE-SECRET-KEY-1 line).
func LoadIdentityFile(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity %s: %w", path, err)
	}
	defer secret.Zero(data)

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity %s: %w", path, err)
	}
	for _, candidate := range identities {
		x25519, ok := candidate.(*age.X25519Identity)
		if !ok {
			continue
		}
		privateKey, err := secret.NewFromBytes([]byte(x25519.String()))
		if err != nil {
			return nil, fmt.Errorf("sealed: protecting identity: %w", err)
		}
		return &Identity{privateKey: privateKey, recipient: x25519.Recipient().String()}, nil
	}
	return nil, fmt.Errorf("sealed: %s holds no X25519 identity", path)
}

// GenerateIdentityFile writes a fresh identity to path (mode 0600,
// parent created 0700) and returns its recipient. An existing file is
// never overwritten.
func GenerateIdentityFile(path string, now time.Time) (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("sealed: generating identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("sealed: creating %s: %w", filepath.Dir(path), err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("sealed: creating identity file: %w", err)
	}
	defer file.Close()

	recipient := identity.Recipient().String()
	_, err = fmt.Fprintf(file, "# created: %s\n# public key: %s\n%s\n",
		now.UTC().Format(time.RFC3339), recipient, identity.String())
	if err != nil {
		return "", fmt.Errorf("sealed: writing identity file: %w", err)
	}
	return recipient, nil
}

// Seal encrypts plaintext to recipient and returns base64 ciphertext.
func Seal(plaintext []byte, recipient string) (string, error) {
	parsed, err := age.ParseX25519Recipient(recipient)
	if err != nil {
		return "", fmt.Errorf("sealed: parsing recipient: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, parsed)
	if err != nil {
		return "", fmt.Errorf("sealed: starting encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finishing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// ErrEmpty is returned by Open when the sealed payload decrypts to
// nothing.
var ErrEmpty = errors.New("sealed: empty plaintext")

// Open decrypts base64 ciphertext produced by Seal.
func Open(ciphertext string, identity *Identity) (*secret.Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("sealed: decoding ciphertext: %w", err)
	}

	parsed, err := age.ParseX25519Identity(identity.privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), parsed)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, ErrEmpty
	}
	return secret.NewFromBytes(plaintext)
}
