// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the forum API. Use errors.As to
// extract it:
//
//	var apiErr *forum.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden { ... }
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Detail is the server's explanation, taken from the FastAPI
	// {"detail": ...} body. Validation failures (a list of field
	// errors) are flattened to "field: message; field: message".
	Detail string
	// Method and Path identify the failed request.
	Method string
	Path   string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("forum: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("forum: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

var (
	// ErrNotAuthenticated is returned when an operation needs a
	// session and none is available.
	ErrNotAuthenticated = errors.New("forum: not logged in")

	// ErrNothingChanged is returned by an edit whose values all match
	// the current ones. No request is sent.
	ErrNothingChanged = errors.New("you didn't change anything")

	// ErrNoConversation is returned by chat history when the two users
	// have never exchanged a message.
	ErrNoConversation = errors.New("forum: no conversation with this user yet")

	// ErrWrongPassword is returned by password-checked operations when
	// the server rejects the current password.
	ErrWrongPassword = errors.New("forum: wrong password")
)

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

// IsUnauthorized reports a 401: the access token is missing or expired.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// parseAPIError builds an *APIError from a failed response body.
// Bodies that are not FastAPI JSON keep their raw text as Detail.
func parseAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Method: method, Path: path}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		apiErr.Detail = text
		return apiErr
	}

	var fieldErrors []struct {
		Location []any `json:"loc"`
		Message  string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &fieldErrors); err == nil {
		parts := make([]string, 0, len(fieldErrors))
		for _, fieldErr := range fieldErrors {
			if field := lastLocation(fieldErr.Location); field != "" {
				parts = append(parts, field+": "+fieldErr.Message)
			} else {
				parts = append(parts, fieldErr.Message)
			}
		}
		apiErr.Detail = strings.Join(parts, "; ")
		return apiErr
	}

	apiErr.Detail = string(envelope.Detail)
	return apiErr
}

// lastLocation returns the innermost field name of a FastAPI "loc".
func lastLocation(location []any) string {
	if len(location) == 0 {
		return ""
	}
	return fmt.Sprint(location[len(location)-1])
}
