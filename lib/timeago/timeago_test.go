// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package timeago

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{90 * time.Second, "1 minute ago"},
		{2 * time.Minute, "2 minutes ago"},
		{59 * time.Minute, "59 minutes ago"},
		{time.Hour, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{23*time.Hour + 59*time.Minute, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{29 * 24 * time.Hour, "29 days ago"},
		{30 * 24 * time.Hour, "1 month ago"},
		{65 * 24 * time.Hour, "2 months ago"},
		{359 * 24 * time.Hour, "11 months ago"},
		{360 * 24 * time.Hour, "1 year ago"},
		{3 * 360 * 24 * time.Hour, "3 years ago"},
		{-5 * time.Minute, "just now"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			if got := Format(now, now.Add(-test.ago)); got != test.want {
				t.Errorf("Format(now-%v) = %q, want %q", test.ago, got, test.want)
			}
		})
	}
	if got := Format(now, time.Time{}); got != "" {
		t.Errorf("Format(zero) = %q, want empty", got)
	}
}
