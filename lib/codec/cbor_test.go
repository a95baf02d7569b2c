// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type cachedEntry struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

func TestDeterministicEncoding(t *testing.T) {
	entry := cachedEntry{
		URL:       "/api/posts?page=1&size=5",
		Status:    200,
		Headers:   map[string]string{"content-type": "application/json", "etag": "x"},
		FetchedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	first, err := Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(entry)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic")
		}
	}

	var decoded cachedEntry
	if err := Unmarshal(first, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.URL != entry.URL || decoded.Status != 200 || !decoded.FetchedAt.Equal(entry.FetchedAt) {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestUntypedMapsUseStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"items": []any{map[string]any{"id": 1}}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	items := top["items"].([]any)
	if _, ok := items[0].(map[string]any); !ok {
		t.Errorf("nested map decoded as %T", items[0])
	}
}
