// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package counsellor

import (
	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// PIPELINE STATE
// =============================================================================

// State is the send pipeline state.
type State int

const (
	// StateIdle means no send has happened in this conversation.
	StateIdle State = iota
	// StateSending means a send is outstanding.
	StateSending
	// StateDelivered means the last send produced a reply.
	StateDelivered
	// StateWaking means the backend looked cold and nothing was appended.
	StateWaking
	// StateFailed means the last send failed for good.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateDelivered:
		return "delivered"
	case StateWaking:
		return "waking"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanRetry reports whether replaying the last user message makes sense.
func (s State) CanRetry() bool {
	return s == StateWaking || s == StateFailed
}

// =============================================================================
// EVENTS
// =============================================================================

// Event is a change notification emitted by a Session.
type Event interface {
	event()
}

// TranscriptEvent carries the full ordered transcript after a change.
type TranscriptEvent struct {
	Messages []model.Message
}

// StateEvent reports a pipeline transition. Notice is user-facing text for
// the transition, such as a sign-in prompt or a server detail message.
type StateEvent struct {
	State  State
	Notice string
}

// StatusEvent reports a change of the shared server status.
type StatusEvent struct {
	Status model.ServerStatus
}

// RevealEvent carries the visible prefix of a reply being revealed. Done is
// set once, on the final event of the run.
type RevealEvent struct {
	LocalID string
	Text    string
	Done    bool
}

// InputEvent carries the input buffer after the session changed it.
type InputEvent struct {
	Text string
}

// RecordingEvent reports whether voice capture is live.
type RecordingEvent struct {
	Recording bool
}

// PlaybackEvent reports the key of the message being narrated, or "".
type PlaybackEvent struct {
	Key string
}

// ConversationEvent reports the active conversation id, "" for a new one.
type ConversationEvent struct {
	ID string
}

// HistoryEvent reports that the stored conversation list changed.
type HistoryEvent struct{}

// NoticeEvent carries a user-facing message that is not tied to the send
// pipeline, such as a voice failure.
type NoticeEvent struct {
	Message string
}

func (TranscriptEvent) event()   {}
func (StateEvent) event()        {}
func (StatusEvent) event()       {}
func (RevealEvent) event()       {}
func (InputEvent) event()        {}
func (RecordingEvent) event()    {}
func (PlaybackEvent) event()     {}
func (ConversationEvent) event() {}
func (HistoryEvent) event()      {}
func (NoticeEvent) event()       {}
