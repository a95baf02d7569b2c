// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agora-forum/agora/lib/codec"
)

// ErrDraftNotFound is returned when no draft has the requested name.
var ErrDraftNotFound = errors.New("cache: draft not found")

// Draft is an unsent post. Images are local file paths.
type Draft struct {
	Name      string    `cbor:"name"`
	PostID    int       `cbor:"post_id,omitempty"` // set when editing an existing post
	Topic     string    `cbor:"topic"`
	Content   string    `cbor:"content"`
	Tags      []string  `cbor:"tags,omitempty"`
	Images    []string  `cbor:"images,omitempty"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Empty reports whether the draft holds nothing worth keeping.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Topic) == "" && strings.TrimSpace(d.Content) == "" &&
		len(d.Tags) == 0 && len(d.Images) == 0
}

// SaveDraft stores draft under its name, stamping UpdatedAt.
func (c *Cache) SaveDraft(ctx context.Context, draft Draft) (Draft, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return Draft{}, fmt.Errorf("cache: draft name is required")
	}
	draft.UpdatedAt = c.clock.Now().UTC()
	record, err := codec.Marshal(draft)
	if err != nil {
		return Draft{}, fmt.Errorf("cache: encoding draft: %w", err)
	}
	err = c.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO drafts (name, record, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
			&sqlitex.ExecOptions{Args: []any{draft.Name, record, draft.UpdatedAt.UnixMilli()}})
	})
	if err != nil {
		return Draft{}, fmt.Errorf("cache: saving draft %q: %w", draft.Name, err)
	}
	return draft, nil
}

// Draft loads a draft by name.
func (c *Cache) Draft(ctx context.Context, name string) (Draft, error) {
	var record []byte
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT record FROM drafts WHERE name = ?", &sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = columnBlob(stmt, 0)
				return nil
			},
		})
	})
	if err != nil {
		return Draft{}, fmt.Errorf("cache: loading draft %q: %w", name, err)
	}
	if record == nil {
		return Draft{}, fmt.Errorf("%w: %q", ErrDraftNotFound, name)
	}
	var draft Draft
	if err := codec.Unmarshal(record, &draft); err != nil {
		return Draft{}, fmt.Errorf("cache: decoding draft %q: %w", name, err)
	}
	return draft, nil
}

// Drafts lists every draft, most recently updated first.
func (c *Cache) Drafts(ctx context.Context) ([]Draft, error) {
	var drafts []Draft
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT record FROM drafts ORDER BY updated_at DESC, name", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var draft Draft
				if err := codec.Unmarshal(columnBlob(stmt, 0), &draft); err != nil {
					return fmt.Errorf("decoding draft: %w", err)
				}
				drafts = append(drafts, draft)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cache: listing drafts: %w", err)
	}
	return drafts, nil
}

// DeleteDraft removes a draft. Deleting a missing draft returns
// ErrDraftNotFound.
func (c *Cache) DeleteDraft(ctx context.Context, name string) error {
	var removed int
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM drafts WHERE name = ?", &sqlitex.ExecOptions{Args: []any{name}})
		removed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("cache: deleting draft %q: %w", name, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %q", ErrDraftNotFound, name)
	}
	return nil
}
