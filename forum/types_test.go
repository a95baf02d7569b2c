// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAttachmentsAcceptBothShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []File
	}{
		{"null", `null`, nil},
		{"links", `["https://cdn/a.png", "https://cdn/b.png"]`, []File{{ID: 0, Link: "https://cdn/a.png"}, {ID: 1, Link: "https://cdn/b.png"}}},
		{"objects", `[{"id": 7, "link": "https://cdn/c.png"}]`, []File{{ID: 7, Link: "https://cdn/c.png"}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var files Attachments
			if err := json.Unmarshal([]byte(test.input), &files); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if len(files) != len(test.want) {
				t.Fatalf("got %d files, want %d", len(files), len(test.want))
			}
			for i := range files {
				if files[i] != test.want[i] {
					t.Errorf("file %d = %+v, want %+v", i, files[i], test.want[i])
				}
			}
		})
	}

	var files Attachments
	if err := json.Unmarshal([]byte(`[42]`), &files); err == nil {
		t.Error("numeric attachment accepted")
	}
}

func TestTimestampLayouts(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-05-04T10:20:30Z", time.Date(2026, 5, 4, 10, 20, 30, 0, time.UTC)},
		{"2026-05-04T10:20:30.123456+02:00", time.Date(2026, 5, 4, 8, 20, 30, 123456000, time.UTC)},
		{"2026-05-04T10:20:30.5", time.Date(2026, 5, 4, 10, 20, 30, 500000000, time.Local)},
		{"2026-05-04 10:20:30", time.Date(2026, 5, 4, 10, 20, 30, 0, time.Local)},
	}
	for _, test := range tests {
		got, err := ParseTimestamp(test.input)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", test.input, err)
			continue
		}
		if !got.Equal(test.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", test.input, got, test.want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp accepted garbage")
	}

	var stamp Timestamp
	if err := json.Unmarshal([]byte(`""`), &stamp); err != nil || !stamp.IsZero() {
		t.Errorf("empty timestamp = %v, %v", stamp, err)
	}
	encoded, err := json.Marshal(Timestamp{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
	if err != nil || string(encoded) != `"2026-01-02T03:04:05Z"` {
		t.Errorf("Marshal = %s, %v", encoded, err)
	}
}

func TestApplyLike(t *testing.T) {
	post := Post{LikesCount: 0}
	post.ApplyLike(false)
	if post.LikesCount != 0 {
		t.Errorf("unlike of an unliked post changed the count to %d", post.LikesCount)
	}
	post.ApplyLike(true)
	post.ApplyLike(true)
	if !post.IsLiked || post.LikesCount != 1 {
		t.Errorf("after double like: %+v", post)
	}

	stale := Post{IsLiked: true, LikesCount: 0}
	stale.ApplyLike(false)
	if stale.LikesCount != 0 {
		t.Errorf("count went negative: %d", stale.LikesCount)
	}
}

func TestAuthoredBy(t *testing.T) {
	post := Post{User: Author{ID: 3}}
	if post.AuthoredBy(nil) {
		t.Error("AuthoredBy(nil) = true")
	}
	if !post.AuthoredBy(&User{ID: 3}) || post.AuthoredBy(&User{ID: 4}) {
		t.Error("AuthoredBy compared the wrong ids")
	}
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail": "Post not found"}`, "Post not found"},
		{"validation list", `{"detail": [{"loc": ["query", "topic"], "msg": "field required"}, {"loc": [], "msg": "bad"}]}`, "topic: field required; bad"},
		{"plain text", "Internal Server Error\n", "Internal Server Error"},
		{"other json", `{"detail": {"code": 1}}`, `{"code": 1}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			apiErr := parseAPIError(http.MethodGet, "/api/x", http.StatusTeapot, []byte(test.body))
			if apiErr.Detail != test.want {
				t.Errorf("Detail = %q, want %q", apiErr.Detail, test.want)
			}
			if apiErr.StatusCode != http.StatusTeapot {
				t.Errorf("StatusCode = %d", apiErr.StatusCode)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ExpiresAt: jwt.NewNumericDate(expiry),
	}).SignedString([]byte("key the client never sees"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	info, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if info.Subject != "alice@example.com" || !info.ExpiresAt.Equal(expiry) {
		t.Errorf("info = %+v", info)
	}
	if info.Expired(expiry.Add(-time.Minute)) || !info.Expired(expiry) {
		t.Error("Expired boundary wrong")
	}

	if _, err := ParseToken("garbage"); err == nil {
		t.Error("ParseToken accepted garbage")
	}
}
