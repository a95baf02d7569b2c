// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/agora-forum/agora/lib/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestCache(t *testing.T, compression Compression, ttl time.Duration) (*Cache, *clock.FakeClock) {
	t.Helper()
	fakeClock := clock.Fake(epoch)
	cache, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "nested", "cache.db"),
		Compression: compression,
		TTL:         ttl,
		Clock:       fakeClock,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache, fakeClock
}

func TestPutAndGet(t *testing.T) {
	body := []byte(`{"items":[` + strings.Repeat(`{"id":1,"topic":"hello"},`, 50) + `{}],"total":51}`)
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			cache, _ := openTestCache(t, compression, 0)
			ctx := context.Background()

			if _, _, ok, err := cache.Get(ctx, "GET /api/posts"); ok || err != nil {
				t.Fatalf("Get on empty cache = %v, %v", ok, err)
			}
			if err := cache.Put(ctx, "GET /api/posts", body); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, fetchedAt, ok, err := cache.Get(ctx, "GET /api/posts")
			if err != nil || !ok {
				t.Fatalf("Get = %v, %v", ok, err)
			}
			if !bytes.Equal(got, body) {
				t.Errorf("body round trip mismatch")
			}
			if !fetchedAt.Equal(epoch) {
				t.Errorf("fetchedAt = %v, want %v", fetchedAt, epoch)
			}

			stats, err := cache.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.Responses != 1 || stats.BodyBytes != int64(len(body)) {
				t.Errorf("stats = %+v", stats)
			}
			if compression != CompressionNone && stats.StoredBytes >= stats.BodyBytes {
				t.Errorf("%s stored %d bytes for a %d byte body", compression, stats.StoredBytes, stats.BodyBytes)
			}
		})
	}
}

func TestPutReplaces(t *testing.T) {
	cache, fakeClock := openTestCache(t, CompressionZstd, 0)
	ctx := context.Background()

	cache.Put(ctx, "GET /api/users", []byte("old"))
	fakeClock.Advance(time.Minute)
	cache.Put(ctx, "GET /api/users", []byte("new"))

	got, fetchedAt, ok, err := cache.Get(ctx, "GET /api/users")
	if err != nil || !ok || string(got) != "new" {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}
	if !fetchedAt.Equal(epoch.Add(time.Minute)) {
		t.Errorf("fetchedAt = %v", fetchedAt)
	}
	if stats, _ := cache.Stats(ctx); stats.Responses != 1 {
		t.Errorf("responses = %d, want 1", stats.Responses)
	}
}

func TestTTLAndPrune(t *testing.T) {
	cache, fakeClock := openTestCache(t, CompressionLZ4, time.Hour)
	ctx := context.Background()

	cache.Put(ctx, "GET /a", []byte("a"))
	fakeClock.Advance(45 * time.Minute)
	cache.Put(ctx, "GET /b", []byte("b"))
	fakeClock.Advance(30 * time.Minute)

	if _, _, ok, _ := cache.Get(ctx, "GET /a"); ok {
		t.Error("expired entry served")
	}
	if _, _, ok, _ := cache.Get(ctx, "GET /b"); !ok {
		t.Error("fresh entry missing")
	}
	removed, err := cache.Prune(ctx)
	if err != nil || removed != 1 {
		t.Errorf("Prune = %d, %v; want 1", removed, err)
	}
}

func TestClearKeepsDrafts(t *testing.T) {
	cache, _ := openTestCache(t, CompressionZstd, 0)
	ctx := context.Background()

	cache.Put(ctx, "GET /a", []byte("a"))
	cache.Put(ctx, "GET /b", []byte("b"))
	if _, err := cache.SaveDraft(ctx, Draft{Name: "trip", Topic: "Trip"}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	removed, err := cache.Clear(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("Clear = %d, %v", removed, err)
	}
	stats, _ := cache.Stats(ctx)
	if stats.Responses != 0 || stats.Drafts != 1 {
		t.Errorf("after Clear: %+v", stats)
	}
}

func TestKeyIsStable(t *testing.T) {
	first := Key("GET /api/posts?page=1")
	if len(first) != 32 {
		t.Fatalf("key length = %d", len(first))
	}
	if !bytes.Equal(first, Key("GET /api/posts?page=1")) {
		t.Error("same request produced different keys")
	}
	if bytes.Equal(first, Key("GET /api/posts?page=2")) {
		t.Error("different requests share a key")
	}
}

func TestDrafts(t *testing.T) {
	cache, fakeClock := openTestCache(t, CompressionZstd, 0)
	ctx := context.Background()

	if _, err := cache.SaveDraft(ctx, Draft{Name: "  "}); err == nil {
		t.Error("unnamed draft saved")
	}

	saved, err := cache.SaveDraft(ctx, Draft{
		Name:    "garden",
		Topic:   "Tomatoes",
		Content: "growing them on a balcony",
		Tags:    []string{"garden", "food"},
		Images:  []string{"/tmp/tomato.png"},
	})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if !saved.UpdatedAt.Equal(epoch) {
		t.Errorf("UpdatedAt = %v", saved.UpdatedAt)
	}
	fakeClock.Advance(time.Minute)
	cache.SaveDraft(ctx, Draft{Name: "edit-7", PostID: 7, Topic: "Fix"})

	loaded, err := cache.Draft(ctx, "garden")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if loaded.Topic != "Tomatoes" || !slices.Equal(loaded.Tags, []string{"garden", "food"}) || !loaded.UpdatedAt.Equal(epoch) {
		t.Errorf("loaded = %+v", loaded)
	}

	drafts, err := cache.Drafts(ctx)
	if err != nil {
		t.Fatalf("Drafts: %v", err)
	}
	if len(drafts) != 2 || drafts[0].Name != "edit-7" || drafts[0].PostID != 7 {
		t.Errorf("drafts = %+v", drafts)
	}

	if err := cache.DeleteDraft(ctx, "garden"); err != nil {
		t.Fatalf("DeleteDraft: %v", err)
	}
	if err := cache.DeleteDraft(ctx, "garden"); !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("second DeleteDraft = %v, want ErrDraftNotFound", err)
	}
	if _, err := cache.Draft(ctx, "garden"); !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("Draft after delete = %v", err)
	}
}

func TestDraftEmpty(t *testing.T) {
	if !(Draft{Name: "x", Topic: "  "}).Empty() {
		t.Error("whitespace draft not empty")
	}
	if (Draft{Tags: []string{"go"}}).Empty() {
		t.Error("draft with tags reported empty")
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": CompressionZstd, "zstd": CompressionZstd, "lz4": CompressionLZ4, "none": CompressionNone} {
		if got, err := ParseCompression(name); err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("gzip accepted")
	}
}

func TestIncompressibleStoredRaw(t *testing.T) {
	data := []byte{0x01}
	encoded, used, err := compress(data, CompressionZstd)
	if err != nil || used != CompressionNone || !bytes.Equal(encoded, data) {
		t.Errorf("compress tiny = %v, %s, %v", encoded, used, err)
	}
}
