// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice records spoken input and plays synthesized replies.
//
// Capture owns at most one microphone lease. Stopping a capture releases the
// device before returning, then submits the recorded audio for transcription
// in the background. Playback owns at most one audio output: asking it to
// speak a message that is already playing stops it, and asking for any other
// message stops the current one first.
//
// Devices and players are interfaces. CommandDevice and CommandPlayer drive
// external recorder and player programs (arecord and ffplay by default).
//
// Failures are reported as distinct errors because each needs a different
// remedy: ErrPermissionDenied, api.ErrNotSignedIn, ErrNotConfigured,
// ErrTranscriptionFailed and ErrSynthesisFailed.
package voice
