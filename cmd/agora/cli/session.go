// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/agora-forum/agora/forum"
	"github.com/agora-forum/agora/lib/sealed"
	"github.com/agora-forum/agora/lib/secret"
)

// SavedSession is the on-disk record of a login. Commands that need an
// account load it instead of asking for a password every time.
type SavedSession struct {
	// APIURL is the server the cookies belong to. A session saved for
	// one server is never sent to another.
	APIURL       string `json:"api_url"`
	WebSocketURL string `json:"websocket_url,omitempty"`

	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`

	// Credentials holds the cookies in clear when no age recipient is
	// configured. Otherwise SealedCredentials carries them encrypted.
	Credentials       *forum.Credentials `json:"credentials,omitempty"`
	SealedCredentials string             `json:"sealed_credentials,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}

// SessionStore reads and writes the session file.
type SessionStore struct {
	// Path is the session file. Written with mode 0600 in a 0700
	// directory.
	Path string

	// Recipient, when set, is the age public key the credentials are
	// sealed to on save.
	Recipient string

	// IdentityPath is the age identity file used to open sealed
	// credentials.
	IdentityPath string
}

// Load reads the saved session. A missing file is reported as an
// unauthenticated error pointing at "agora login".
func (s *SessionStore) Load() (*SavedSession, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Unauthenticated("not logged in (no session at %s)", s.Path).
			WithHint("Run 'agora login' first.")
	}
	if err != nil {
		return nil, Internal("reading session file %s: %w", s.Path, err)
	}
	defer secret.Zero(data)

	var saved SavedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, Internal("parsing session file %s: %w", s.Path, err)
	}
	if saved.APIURL == "" {
		return nil, Internal("session file %s has no api_url", s.Path)
	}
	if saved.Credentials == nil && saved.SealedCredentials == "" {
		return nil, Unauthenticated("session file %s holds no credentials", s.Path).
			WithHint("Run 'agora login' again.")
	}
	return &saved, nil
}

// Credentials returns the cookies of saved, opening them with the
// identity file when they are sealed.
func (s *SessionStore) Credentials(saved *SavedSession) (forum.Credentials, error) {
	if saved.SealedCredentials == "" {
		if saved.Credentials == nil {
			return forum.Credentials{}, forum.ErrNotAuthenticated
		}
		return *saved.Credentials, nil
	}
	if s.IdentityPath == "" {
		return forum.Credentials{}, Validation("session credentials are sealed but session.age_identity is not configured")
	}

	identity, err := sealed.LoadIdentityFile(s.IdentityPath)
	if err != nil {
		return forum.Credentials{}, Internal("%w", err)
	}
	defer identity.Close()

	plaintext, err := sealed.Open(saved.SealedCredentials, identity)
	if err != nil {
		return forum.Credentials{}, Internal("opening session credentials: %w", err)
	}
	defer plaintext.Close()

	var credentials forum.Credentials
	if err := json.Unmarshal(plaintext.Bytes(), &credentials); err != nil {
		return forum.Credentials{}, Internal("parsing sealed credentials: %w", err)
	}
	return credentials, nil
}

// Save writes saved with credentials, sealing them when a recipient is
// configured. Concurrent invocations are serialized with an advisory
// lock on a sibling ".lock" file and the file is replaced atomically.
func (s *SessionStore) Save(saved *SavedSession, credentials forum.Credentials, now time.Time) error {
	record := *saved
	record.SavedAt = now.UTC()
	record.Credentials, record.SealedCredentials = nil, ""

	if s.Recipient != "" {
		plaintext, err := json.Marshal(credentials)
		if err != nil {
			return Internal("encoding credentials: %w", err)
		}
		ciphertext, err := sealed.Seal(plaintext, s.Recipient)
		secret.Zero(plaintext)
		if err != nil {
			return Internal("%w", err)
		}
		record.SealedCredentials = ciphertext
	} else {
		record.Credentials = &credentials
	}

	data, err := json.MarshalIndent(&record, "", "  ")
	if err != nil {
		return Internal("encoding session: %w", err)
	}
	data = append(data, '\n')
	defer secret.Zero(data)

	return s.locked(func() error {
		temporary := s.Path + ".tmp"
		if err := os.WriteFile(temporary, data, 0600); err != nil {
			return Internal("writing session file: %w", err)
		}
		if err := os.Rename(temporary, s.Path); err != nil {
			os.Remove(temporary)
			return Internal("replacing session file: %w", err)
		}
		return nil
	})
}

// Remove deletes the session file. Removing a missing file succeeds.
func (s *SessionStore) Remove() error {
	return s.locked(func() error {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Internal("removing session file: %w", err)
		}
		return nil
	})
}

// locked runs fn holding an exclusive flock on the session's lock file.
func (s *SessionStore) locked(fn func() error) error {
	directory := filepath.Dir(s.Path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return Internal("creating session directory %s: %w", directory, err)
	}
	lockFile, err := os.OpenFile(s.Path+".lock", os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return Internal("opening session lock: %w", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return Internal("locking session file: %w", err)
	}
	defer unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
	return fn()
}

// String describes where the session lives, for diagnostics.
func (s *SessionStore) String() string {
	if s.Recipient != "" {
		return fmt.Sprintf("%s (sealed)", s.Path)
	}
	return s.Path
}
