// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/counsellor/internal/api"
	"github.com/jeranaias/counsellor/internal/config"
	"github.com/jeranaias/counsellor/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the user is not signed in
	ExitAuthError = 4
	// ExitNetworkError indicates the backend is unreachable or waking up
	ExitNetworkError = 5
	// ExitNotFoundError indicates a conversation was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

var (
	// errBackendWaking is returned when a one-shot command finds the
	// backend still starting up.
	errBackendWaking = errors.New("the counsellor service is waking up")

	// errNoReply is returned when a send ends without a reply.
	errNoReply = errors.New("no reply from the counsellor")
)

// UsageError marks bad arguments or flags.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HANDLING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, api.ErrNotSignedIn):
		return ExitAuthError
	case errors.Is(err, errBackendWaking):
		return ExitNetworkError
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrAmbiguous):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	}
	return ExitGeneralError
}

// DisplayError writes a human-readable error line.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", failMark(), err.Error())
	if errors.Is(err, api.ErrNotSignedIn) {
		fmt.Fprintln(w, DimStyle.Render("Set api.token or api.token_file with: counsellor config set"))
	}
}
