// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/sealed"
)

var saveTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := &SessionStore{Path: filepath.Join(t.TempDir(), "nested", "session.json")}

	_, err := store.Load()
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != CategoryUnauthenticated {
		t.Fatalf("Load before login = %v, want unauthenticated", err)
	}

	credentials := forum.Credentials{AccessToken: "access", RefreshToken: "refresh"}
	saved := &SavedSession{APIURL: "http://forum.test", UserID: 3, Username: "alice", Email: "alice@example.com"}
	if err := store.Save(saved, credentials, saveTime); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(store.Path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("session mode = %v, want 0600", info.Mode().Perm())
	}
	if dir, _ := os.Stat(filepath.Dir(store.Path)); dir.Mode().Perm() != 0700 {
		t.Errorf("directory mode = %v, want 0700", dir.Mode().Perm())
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Username != "alice" || !loaded.SavedAt.Equal(saveTime) {
		t.Errorf("loaded = %+v", loaded)
	}
	got, err := store.Credentials(loaded)
	if err != nil || got != credentials {
		t.Errorf("Credentials = %+v, %v", got, err)
	}

	if err := store.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Error("Load after Remove succeeded")
	}
}

func TestSessionStoreSealsCredentials(t *testing.T) {
	directory := t.TempDir()
	identityPath := filepath.Join(directory, "identity.txt")
	recipient, err := sealed.GenerateIdentityFile(identityPath, saveTime)
	if err != nil {
		t.Fatalf("GenerateIdentityFile: %v", err)
	}
	store := &SessionStore{
		Path:         filepath.Join(directory, "session.json"),
		Recipient:    recipient,
		IdentityPath: identityPath,
	}

	credentials := forum.Credentials{AccessToken: "super-secret-access"}
	if err := store.Save(&SavedSession{APIURL: "http://forum.test"}, credentials, saveTime); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "super-secret-access") {
		t.Fatal("access token stored in clear")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := store.Credentials(loaded)
	if err != nil || got != credentials {
		t.Errorf("Credentials = %+v, %v", got, err)
	}

	withoutIdentity := &SessionStore{Path: store.Path}
	if _, err := withoutIdentity.Credentials(loaded); err == nil {
		t.Error("sealed credentials opened without an identity")
	}
}

func TestPrompterReadsLines(t *testing.T) {
	var output strings.Builder
	prompter := &Prompter{In: strings.NewReader("Password123\nyes\nlast"), Out: &output}

	password, err := prompter.Password("Password")
	if err != nil {
		t.Fatalf("Password: %v", err)
	}
	defer password.Close()
	if password.String() != "Password123" {
		t.Errorf("password = %q", password.String())
	}

	confirmed, err := prompter.Confirm("Delete?")
	if err != nil || !confirmed {
		t.Errorf("Confirm = %v, %v", confirmed, err)
	}
	line, err := prompter.Line("Name")
	if err != nil || line != "last" {
		t.Errorf("Line = %q, %v", line, err)
	}
	if _, err := prompter.Line("More"); err == nil {
		t.Error("Line at EOF succeeded")
	}
	if !strings.Contains(output.String(), "Delete? [y/N]: ") {
		t.Errorf("prompts = %q", output.String())
	}
}
