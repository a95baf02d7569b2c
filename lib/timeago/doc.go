// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeago renders timestamps as "N units ago" text for post,
// comment and message headers.
package timeago
