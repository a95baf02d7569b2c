// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty, originalTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() {
		GitCommit, GitDirty, BuildTime = originalCommit, originalDirty, originalTime
	})

	GitCommit = "abc1234"
	BuildTime = "2026-10-01T12:00:00Z"

	GitDirty = "false"
	if got, want := Info(), Version+" (abc1234, 2026-10-01T12:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.Contains(full, "Go: ") || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q, missing Go or Platform line", full)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); !strings.HasPrefix(got, "agora/"+Version+" (") {
		t.Errorf("UserAgent() = %q", got)
	}
}
