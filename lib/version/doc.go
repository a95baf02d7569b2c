// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the agora binary.
//
// The variables below are injected at link time:
//
//	go build -ldflags "-X github.com/agora-forum/agora/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds and tests see the defaults ("unknown",
// "0.1.0-dev"). [Info] is the single-line form used by "agora
// version"; [Full] adds the Go toolchain and platform. [UserAgent] is
// the User-Agent header the forum client sends.
package version
