// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ExitError ends the process with Code without printing anything
// further; the command has already written its own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCode returns the exit status for an error returned by Execute
// and whether the error text should still be printed.
func ExitCode(err error) (code int, report bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.ExitCode(), true
	}
	return 1, true
}
