// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	key         BLOB PRIMARY KEY,
	compression INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	body        BLOB NOT NULL,
	fetched_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS responses_fetched_at ON responses (fetched_at);
CREATE TABLE IF NOT EXISTS drafts (
	name       TEXT PRIMARY KEY,
	record     BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Applied to every pooled connection before first use.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

func openPool(path string, size int) (*sqlitex.Pool, error) {
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range pragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("cache: %s: %w", pragma, err)
				}
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", path, err)
	}
	return pool, nil
}

// withConn borrows a connection for the duration of fn.
func (c *Cache) withConn(ctx context.Context, fn func(*sqlite.Conn) error) error {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("cache: take connection: %w", err)
	}
	defer c.pool.Put(conn)
	return fn(conn)
}

func columnBlob(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}
