// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agora-forum/agora/lib/clock"
)

// Config holds the parameters for Open. Path is required.
type Config struct {
	// Path is the database file. Its directory is created with mode
	// 0700 if missing.
	Path string

	// Compression applied to stored response bodies.
	Compression Compression

	// TTL bounds how old a stored response may be and still be
	// served. Zero keeps responses forever.
	TTL time.Duration

	// PoolSize defaults to 4.
	PoolSize int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Cache stores API responses and drafts. It is safe for concurrent
// use and satisfies forum.ResponseCache.
type Cache struct {
	pool        *sqlitex.Pool
	path        string
	compression Compression
	ttl         time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// Open opens or creates the cache database.
func Open(cfg Config) (*Cache, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("cache: Path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("cache: creating directory: %w", err)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	pool, err := openPool(cfg.Path, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debug("cache opened", "path", cfg.Path, "compression", cfg.Compression.String())
	return &Cache{
		pool:        pool,
		path:        cfg.Path,
		compression: cfg.Compression,
		ttl:         cfg.TTL,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}, nil
}

// Path returns the database file path.
func (c *Cache) Path() string { return c.path }

// Close closes every pooled connection.
func (c *Cache) Close() error {
	if err := c.pool.Close(); err != nil {
		return fmt.Errorf("cache: closing %s: %w", c.path, err)
	}
	return nil
}

// keyDomain separates response keys from any other BLAKE3 use: the
// ASCII domain name zero-padded to 32 bytes.
var keyDomain = [32]byte{
	'a', 'g', 'o', 'r', 'a', '.', 'c', 'a', 'c', 'h', 'e', '.',
	'r', 'e', 's', 'p', 'o', 'n', 's', 'e',
}

// Key hashes a request line such as "GET /api/posts?page=1&size=5".
func Key(request string) []byte {
	hasher, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		panic("cache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(request))
	return hasher.Sum(nil)
}

// Get returns the stored body for a request line and when it was
// fetched. Entries older than the TTL are reported as missing.
func (c *Cache) Get(ctx context.Context, request string) ([]byte, time.Time, bool, error) {
	var (
		found       bool
		compression Compression
		size        int
		stored      []byte
		fetchedAt   time.Time
	)
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT compression, size, body, fetched_at FROM responses WHERE key = ?",
			&sqlitex.ExecOptions{
				Args: []any{Key(request)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					compression = Compression(stmt.ColumnInt(0))
					size = stmt.ColumnInt(1)
					stored = columnBlob(stmt, 2)
					fetchedAt = time.UnixMilli(stmt.ColumnInt64(3))
					return nil
				},
			})
	})
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("cache: get: %w", err)
	}
	if !found {
		return nil, time.Time{}, false, nil
	}
	if c.ttl > 0 && c.clock.Now().Sub(fetchedAt) > c.ttl {
		return nil, fetchedAt, false, nil
	}
	body, err := decompress(stored, compression, size)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return body, fetchedAt, true, nil
}

// Put stores body for a request line, replacing any earlier copy.
func (c *Cache) Put(ctx context.Context, request string, body []byte) error {
	encoded, compression, err := compress(body, c.compression)
	if err != nil {
		return err
	}
	err = c.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO responses (key, compression, size, body, fetched_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET compression = excluded.compression, size = excluded.size,
			 body = excluded.body, fetched_at = excluded.fetched_at`,
			&sqlitex.ExecOptions{
				Args: []any{Key(request), int(compression), len(body), encoded, c.clock.Now().UnixMilli()},
			})
	})
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Stats describes the cache contents.
type Stats struct {
	Path        string
	Responses   int
	BodyBytes   int64 // uncompressed
	StoredBytes int64 // on disk, before SQLite overhead
	Drafts      int
	Oldest      time.Time
	Newest      time.Time
}

// Stats counts stored responses and drafts.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: c.path}
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			"SELECT count(*), coalesce(sum(size), 0), coalesce(sum(length(body)), 0), coalesce(min(fetched_at), 0), coalesce(max(fetched_at), 0) FROM responses",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					stats.Responses = stmt.ColumnInt(0)
					stats.BodyBytes = stmt.ColumnInt64(1)
					stats.StoredBytes = stmt.ColumnInt64(2)
					if stats.Responses > 0 {
						stats.Oldest = time.UnixMilli(stmt.ColumnInt64(3))
						stats.Newest = time.UnixMilli(stmt.ColumnInt64(4))
					}
					return nil
				},
			})
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, "SELECT count(*) FROM drafts", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				stats.Drafts = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}
	return stats, nil
}

// Clear removes every stored response and reports how many were
// removed. Drafts are kept.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	var removed int
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM responses", nil); err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache: clear: %w", err)
	}
	c.logger.Info("response cache cleared", "removed", removed)
	return removed, nil
}

// Prune removes responses older than the TTL. It does nothing when no
// TTL is configured.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := c.clock.Now().Add(-c.ttl).UnixMilli()
	var removed int
	err := c.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM responses WHERE fetched_at < ?", &sqlitex.ExecOptions{
			Args: []any{cutoff},
		})
		removed = conn.Changes()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	if removed > 0 {
		c.logger.Debug("pruned expired responses", "removed", removed)
	}
	return removed, nil
}
