// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package counsellor implements the AI Counsellor chat session.
//
// A Session owns the in-memory transcript, the input buffer and the send
// pipeline, and composes the collaborators around them: the chat backend,
// the conversation store adapter, the shared server status, the reveal
// scheduler and the voice capture and playback sessions.
//
// # Send Pipeline
//
//	Idle -> Sending -> Delivered | Waking | Failed
//
// Sends are serialized: a send while another is outstanding is rejected,
// not queued. The user message is appended to the transcript before any
// network call and persisted in the background. A reply is appended,
// persisted and revealed. Timeouts, 502/503 and network failures are
// folded into Waking, which appends nothing and leaves the last user message
// available for Retry. Any other failure appends a fallback reply.
//
// # Events
//
// Every change is reported as an Event through Config.Notify. Events may be
// delivered from any goroutine; the chat TUI forwards them to its program.
package counsellor
