// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newIdentity(t *testing.T) (*Identity, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys", "identity.txt")
	recipient, err := GenerateIdentityFile(path, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GenerateIdentityFile: %v", err)
	}
	identity, err := LoadIdentityFile(path)
	if err != nil {
		t.Fatalf("LoadIdentityFile: %v", err)
	}
	t.Cleanup(func() { identity.Close() })
	return identity, recipient
}

func TestGenerateIdentityFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.txt")
	recipient, err := GenerateIdentityFile(path, time.Now())
	if err != nil {
		t.Fatalf("GenerateIdentityFile: %v", err)
	}
	if !strings.HasPrefix(recipient, "age1") {
		t.Errorf("recipient = %q, want age1 prefix", recipient)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("identity mode = %v, want 0600", info.Mode().Perm())
	}

	if _, err := GenerateIdentityFile(path, time.Now()); err == nil {
		t.Error("second GenerateIdentityFile should refuse to overwrite")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	identity, recipient := newIdentity(t)
	if identity.Recipient() != recipient {
		t.Fatalf("loaded recipient %q != generated %q", identity.Recipient(), recipient)
	}

	ciphertext, err := Seal([]byte(`{"access_token":"a.b.c"}`), recipient)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if strings.Contains(ciphertext, "access_token") {
		t.Fatal("ciphertext leaks plaintext")
	}

	plaintext, err := Open(ciphertext, identity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer plaintext.Close()
	if plaintext.String() != `{"access_token":"a.b.c"}` {
		t.Errorf("Open() = %q", plaintext.String())
	}
}

func TestOpenWithWrongIdentity(t *testing.T) {
	_, recipient := newIdentity(t)
	other, _ := newIdentity(t)

	ciphertext, err := Seal([]byte("cookie"), recipient)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(ciphertext, other); err == nil {
		t.Fatal("Open with the wrong identity should fail")
	}
}

func TestSealRejectsBadRecipient(t *testing.T) {
	if _, err := Seal([]byte("x"), "not-a-recipient"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadIdentityFileErrors(t *testing.T) {
	directory := t.TempDir()
	if _, err := LoadIdentityFile(filepath.Join(directory, "missing")); err == nil {
		t.Error("missing file should fail")
	}

	garbage := filepath.Join(directory, "garbage")
	if err := os.WriteFile(garbage, []byte("# only a comment\nnot a key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIdentityFile(garbage); err == nil {
		t.Error("garbage identity file should fail")
	}
}
