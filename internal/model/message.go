// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Counsellor"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// ACTION TYPE
// =============================================================================

// Action types reported by the counsellor backend.
const (
	ActionCreateTask          = "create_task"
	ActionLockUniversity      = "lock_university"
	ActionShortlistUniversity = "shortlist_university"
)

// Action describes a side effect the assistant performed during a turn.
type Action struct {
	Type   string         `json:"type"`
	Args   map[string]any `json:"args,omitempty"`
	Result string         `json:"result"`
}

// Label returns the badge text shown for the action.
func (a Action) Label() string {
	switch a.Type {
	case ActionCreateTask:
		return "Task created"
	case ActionLockUniversity:
		return "Locked"
	case ActionShortlistUniversity:
		return "Shortlisted"
	default:
		return a.Type
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a conversation.
//
// ID is assigned by the persistence service and stays empty for an
// optimistic local echo. LocalID is generated on creation and never changes.
type Message struct {
	ID             string    `json:"id,omitempty"`
	LocalID        string    `json:"-"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Actions        []Action  `json:"actions,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh LocalID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		LocalID:   uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message with optional actions.
func NewAssistantMessage(content string, actions []Action) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Actions = actions
	return msg
}

// Key returns the identifier used to address the message in the UI: the
// server ID once persisted, the local ID before that.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.LocalID
}

// IsPersisted reports whether the message has a server-assigned ID.
func (m Message) IsPersisted() bool {
	return m.ID != ""
}

// IsUser returns true if this is a user message.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true if this is an assistant message.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}
