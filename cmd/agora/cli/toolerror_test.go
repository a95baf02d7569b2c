// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/agora-forum/agora/forum"
)

func TestToolErrorHint(t *testing.T) {
	err := NotFound("post %d not found", 7).WithHint("Run 'agora posts list'.")
	if err.Error() != "post 7 not found\n\nRun 'agora posts list'." {
		t.Errorf("Error() = %q", err.Error())
	}

	wrapped := fmt.Errorf("show: %w", err)
	var toolErr *ToolError
	if !errors.As(wrapped, &toolErr) || toolErr.Category != CategoryNotFound {
		t.Fatalf("errors.As lost the category: %v", wrapped)
	}
	if Validation("plain").Error() != "plain" {
		t.Error("empty hint changed the message")
	}
}

func TestFromAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"unauthorized", &forum.APIError{StatusCode: http.StatusUnauthorized}, CategoryUnauthenticated},
		{"forbidden", &forum.APIError{StatusCode: http.StatusForbidden}, CategoryForbidden},
		{"not found", fmt.Errorf("wrapped: %w", &forum.APIError{StatusCode: http.StatusNotFound}), CategoryNotFound},
		{"conflict", &forum.APIError{StatusCode: http.StatusConflict}, CategoryConflict},
		{"unprocessable", &forum.APIError{StatusCode: http.StatusUnprocessableEntity}, CategoryValidation},
		{"server", &forum.APIError{StatusCode: http.StatusBadGateway}, CategoryTransient},
		{"not logged in", forum.ErrNotAuthenticated, CategoryUnauthenticated},
		{"wrong password", forum.ErrWrongPassword, CategoryValidation},
		{"nothing changed", forum.ErrNothingChanged, CategoryValidation},
		{"no conversation", forum.ErrNoConversation, CategoryNotFound},
		{"deadline", context.DeadlineExceeded, CategoryTransient},
		{"other", errors.New("boom"), CategoryInternal},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var toolErr *ToolError
			if !errors.As(FromAPIError(test.err), &toolErr) {
				t.Fatal("no ToolError")
			}
			if toolErr.Category != test.want {
				t.Errorf("category = %q, want %q", toolErr.Category, test.want)
			}
			if !errors.Is(toolErr, test.err) {
				t.Error("original error not wrapped")
			}
		})
	}

	if FromAPIError(nil) != nil {
		t.Error("FromAPIError(nil) != nil")
	}
	original := Conflict("taken")
	if FromAPIError(original) != error(original) {
		t.Error("categorized error was rewrapped")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err    error
		code   int
		report bool
	}{
		{nil, 0, false},
		{&ExitError{Code: 9}, 9, false},
		{Validation("bad"), 2, true},
		{fmt.Errorf("x: %w", Transient("down")), 7, true},
		{errors.New("plain"), 1, true},
	}
	for _, test := range tests {
		code, report := ExitCode(test.err)
		if code != test.code || report != test.report {
			t.Errorf("ExitCode(%v) = %d, %v; want %d, %v", test.err, code, report, test.code, test.report)
		}
	}
}
