// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"errors"
	"fmt"

	"github.com/jeranaias/counsellor/internal/api"
)

var (
	// ErrPermissionDenied means the recording device refused access.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrDeviceUnavailable means no recorder could be started.
	ErrDeviceUnavailable = errors.New("no recording device available")

	// ErrNotConfigured means the speech service has no API key.
	ErrNotConfigured = errors.New("speech service is not configured")

	// ErrTranscriptionFailed is any other speech-to-text failure.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrSynthesisFailed is any other text-to-speech or playback failure.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// classify maps a backend error onto the voice error set, keeping
// api.ErrNotSignedIn intact.
func classify(err error, generic error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrNotSignedIn):
		return api.ErrNotSignedIn
	case errors.Is(err, api.ErrNotConfigured):
		return ErrNotConfigured
	default:
		return fmt.Errorf("%w: %v", generic, err)
	}
}

// Message returns the user-facing text for a voice error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access denied. Please allow microphone access for the recorder."
	case errors.Is(err, ErrDeviceUnavailable):
		return "Failed to start recording. Please try again."
	case errors.Is(err, api.ErrNotSignedIn):
		return "Please log in to use voice features."
	case errors.Is(err, ErrNotConfigured):
		return "Speech service is not configured. Please add the API key on the server."
	case errors.Is(err, ErrSynthesisFailed):
		return "Failed to play audio. Please try again."
	default:
		return "Failed to transcribe audio. Please try again."
	}
}
