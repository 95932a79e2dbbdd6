// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrAmbiguous is returned when a conversation reference matches more
	// than one conversation.
	ErrAmbiguous = errors.New("ambiguous conversation reference")

	// ErrNoUser is returned when persistence is attempted without a user id.
	ErrNoUser = errors.New("no user id configured")
)

// =============================================================================
// SERVICE
// =============================================================================

// MessageInput is a message to insert.
type MessageInput struct {
	UserID         string
	ConversationID string
	Role           model.Role
	Content        string
	Actions        []model.Action
}

// Service is the conversation persistence collaborator.
type Service interface {
	// CreateConversation creates a conversation and returns it with its id.
	CreateConversation(ctx context.Context, userID, title string) (model.Conversation, error)

	// TouchConversation sets the conversation's last activity time.
	TouchConversation(ctx context.Context, id string, at time.Time) error

	// InsertMessage stores one message and returns it with its id.
	InsertMessage(ctx context.Context, in MessageInput) (model.Message, error)

	// ListMessages returns a conversation's messages, oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	// ListConversations returns a user's conversations, most recent activity
	// first.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	// DeleteConversation removes a conversation and its messages.
	DeleteConversation(ctx context.Context, id string) error

	// RenameConversation changes a conversation's title.
	RenameConversation(ctx context.Context, id, title string) error
}
