// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/agora-forum/agora/forum"
)

// ErrorCategory classifies command failures so scripts can tell bad
// input from a missing resource or an unreachable server.
type ErrorCategory string

const (
	// CategoryValidation: the arguments or flags are wrong.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: the post, user or message does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryUnauthenticated: no session, or the server rejected it.
	CategoryUnauthenticated ErrorCategory = "unauthenticated"

	// CategoryForbidden: the session may not act on the resource,
	// for example editing another user's post.
	CategoryForbidden ErrorCategory = "forbidden"

	// CategoryConflict: the change collides with existing state, such
	// as a taken username.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient: network failure, timeout or a 5xx reply.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything else.
	CategoryInternal ErrorCategory = "internal"
)

// exitCodes maps categories to process exit codes.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation:      2,
	CategoryNotFound:        3,
	CategoryUnauthenticated: 4,
	CategoryForbidden:       5,
	CategoryConflict:        6,
	CategoryTransient:       7,
	CategoryInternal:        1,
}

// ToolError is a categorized command error. Hint, when set, is printed
// after the message as a suggested next step.
type ToolError struct {
	Category ErrorCategory
	Err      error
	Hint     string
}

func (e *ToolError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code for the category.
func (e *ToolError) ExitCode() int {
	if code, ok := exitCodes[e.Category]; ok {
		return code
	}
	return 1
}

// WithHint sets the hint and returns the receiver for chaining.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

func Unauthenticated(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryUnauthenticated, Err: fmt.Errorf(format, args...)}
}

func Forbidden(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryForbidden, Err: fmt.Errorf(format, args...)}
}

func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// FromAPIError categorizes an error returned by the forum client.
// Errors that already carry a category pass through unchanged and
// nil stays nil.
func FromAPIError(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return err
	}

	category := CategoryInternal
	var apiErr *forum.APIError
	var netErr net.Error
	switch {
	case errors.Is(err, forum.ErrNotAuthenticated):
		return (&ToolError{Category: CategoryUnauthenticated, Err: err}).
			WithHint("Run 'agora login' to sign in.")
	case errors.Is(err, forum.ErrWrongPassword):
		category = CategoryValidation
	case errors.Is(err, forum.ErrNothingChanged):
		category = CategoryValidation
	case errors.Is(err, forum.ErrNoConversation):
		category = CategoryNotFound
	case errors.As(err, &apiErr):
		category = statusCategory(apiErr.StatusCode)
		if category == CategoryUnauthenticated {
			return (&ToolError{Category: category, Err: err}).
				WithHint("The session has expired. Run 'agora login' again.")
		}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		category = CategoryTransient
	}
	return &ToolError{Category: category, Err: err}
}

func statusCategory(status int) ErrorCategory {
	switch {
	case status == http.StatusUnauthorized:
		return CategoryUnauthenticated
	case status == http.StatusForbidden:
		return CategoryForbidden
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusConflict:
		return CategoryConflict
	case status == http.StatusTooManyRequests, status >= 500:
		return CategoryTransient
	case status >= 400:
		return CategoryValidation
	}
	return CategoryInternal
}
