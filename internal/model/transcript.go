// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"sync"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the authoritative in-memory message list of a session.
// Messages are kept ordered by CreatedAt regardless of the order in which
// they arrive. It is safe for concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message and returns it. Messages created later than the
// current tail go to the end; anything older is inserted in order.
func (t *Transcript) Append(msg Message) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertLocked(msg)
	return msg
}

func (t *Transcript) insertLocked(msg Message) {
	// Stable: equal timestamps keep arrival order.
	i := sort.Search(len(t.messages), func(i int) bool {
		return t.messages[i].CreatedAt.After(msg.CreatedAt)
	})
	t.messages = append(t.messages, Message{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = msg
}

// Replace swaps the whole transcript, e.g. when resuming a stored
// conversation. The input is sorted by creation time.
func (t *Transcript) Replace(msgs []Message) {
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = sorted
}

// Clear removes all messages.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// Messages returns a copy of the ordered message list.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// IsEmpty returns true when the transcript holds no messages.
func (t *Transcript) IsEmpty() bool {
	return t.Len() == 0
}

// LastUser scans backward for the most recent user message.
func (t *Transcript) LastUser() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleUser {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// Last returns the final message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Find returns the message whose Key or LocalID equals key.
func (t *Transcript) Find(key string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.messages {
		if m.Key() == key || m.LocalID == key {
			return m, true
		}
	}
	return Message{}, false
}

// SetID back-fills the server ID (and conversation) of a persisted message.
// Returns false when no message has the given LocalID, e.g. after the
// transcript was replaced by a conversation switch.
func (t *Transcript) SetID(localID, id, conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].LocalID == localID {
			t.messages[i].ID = id
			t.messages[i].ConversationID = conversationID
			return true
		}
	}
	return false
}
