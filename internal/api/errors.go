// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnauthenticated
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeUnavailable
	ErrTypeHTTP
	ErrTypeInvalidResponse
	ErrTypeNotConfigured
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeUnauthenticated:
		return "unauthenticated"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeUnavailable:
		return "unavailable"
	case ErrTypeHTTP:
		return "http"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string
	// Status is the HTTP status code, zero when no response was received.
	Status int
	// Detail is the human-readable message the server put in the error
	// body, surfaced verbatim to the user when present.
	Detail string
	Cause  error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg += " (HTTP " + strconv.Itoa(e.Status) + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches on error type, so errors.Is(err, ErrTimeout) holds for any
// timeout regardless of message.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Sentinel errors for easy checking.
var (
	ErrNotSignedIn     = &ClientError{Type: ErrTypeUnauthenticated, Message: "please sign in"}
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrConnection      = &ClientError{Type: ErrTypeConnection, Message: "network request failed"}
	ErrUnavailable     = &ClientError{Type: ErrTypeUnavailable, Message: "server is starting up"}
	ErrInvalidResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed response"}
	ErrNotConfigured   = &ClientError{Type: ErrTypeNotConfigured, Message: "service not configured"}
)

// DetailOf returns the server-provided detail message carried by err, if any.
func DetailOf(err error) string {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Detail
	}
	return ""
}

// transportError converts an http.Client.Do failure into a ClientError.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "network request failed", Cause: err}
}

// statusError builds the error for a non-2xx response. 502 and 503 mean the
// backend is still waking up.
func statusError(status int, detail, fallback string) error {
	typ := ErrTypeHTTP
	switch {
	case status == 502 || status == 503:
		typ = ErrTypeUnavailable
	case mentionsAPIKey(detail):
		typ = ErrTypeNotConfigured
	}
	return &ClientError{Type: typ, Message: fallback, Status: status, Detail: detail}
}

// mentionsAPIKey detects the backend's "API key not configured" replies from
// the speech endpoints.
func mentionsAPIKey(detail string) bool {
	return strings.Contains(strings.ToLower(detail), "api key")
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Outcome is the coarse result class of a backend call.
type Outcome int

const (
	// OutcomeOK means the call succeeded.
	OutcomeOK Outcome = iota
	// OutcomeWaking covers timeouts, 502/503 and network failures: the
	// backend is presumed to be cold-starting and a retry may succeed.
	OutcomeWaking
	// OutcomeUnauthenticated means no credential was available.
	OutcomeUnauthenticated
	// OutcomeFailed is any other failure.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeWaking:
		return "waking"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	default:
		return "failed"
	}
}

// Classify maps an error returned by the client to an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var ce *ClientError
	if !errors.As(err, &ce) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return OutcomeWaking
		}
		return OutcomeFailed
	}
	switch ce.Type {
	case ErrTypeTimeout, ErrTypeUnavailable, ErrTypeConnection:
		return OutcomeWaking
	case ErrTypeUnauthenticated:
		return OutcomeUnauthenticated
	default:
		return OutcomeFailed
	}
}
