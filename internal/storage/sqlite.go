// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// SQLITE SERVICE
// =============================================================================

// SQLiteService implements Service on a local SQLite database.
type SQLiteService struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(path string) (*SQLiteService, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &SQLiteService{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteService) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation inserts a new conversation.
func (s *SQLiteService) CreateConversation(ctx context.Context, userID, title string) (model.Conversation, error) {
	if userID == "" {
		return model.Conversation{}, ErrNoUser
	}

	now := s.now()
	conv := model.Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, last_message_at)
		VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, now.UnixNano(), now.UnixNano())
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// TouchConversation updates last_message_at.
func (s *SQLiteService) TouchConversation(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET last_message_at = ? WHERE id = ?", at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return requireRow(res)
}

// RenameConversation updates the title.
func (s *SQLiteService) RenameConversation(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return requireRow(res)
}

// DeleteConversation removes the conversation; its messages cascade.
func (s *SQLiteService) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return requireRow(res)
}

// ListConversations returns the user's conversations, most recent first.
func (s *SQLiteService) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, last_message_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY last_message_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		var c model.Conversation
		var created, last int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &created, &last); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c.CreatedAt = time.Unix(0, created)
		c.LastMessageAt = time.Unix(0, last)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// =============================================================================
// MESSAGES
// =============================================================================

// InsertMessage stores a message.
func (s *SQLiteService) InsertMessage(ctx context.Context, in MessageInput) (model.Message, error) {
	if in.UserID == "" {
		return model.Message{}, ErrNoUser
	}
	if !in.Role.Valid() {
		return model.Message{}, fmt.Errorf("invalid role %q", in.Role)
	}

	var actions sql.NullString
	if len(in.Actions) > 0 {
		data, err := json.Marshal(in.Actions)
		if err != nil {
			return model.Message{}, fmt.Errorf("failed to encode actions: %w", err)
		}
		actions = sql.NullString{String: string(data), Valid: true}
	}

	now := s.now()
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		Role:           in.Role,
		Content:        in.Content,
		Actions:        in.Actions,
		CreatedAt:      now,
	}
	msg.LocalID = msg.ID

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation_id, user_id, role, content, actions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, in.ConversationID, in.UserID, string(in.Role), in.Content, actions, now.UnixNano())
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the conversation's messages in creation order.
func (s *SQLiteService) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, actions, created_at
		FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		var actions sql.NullString
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &actions, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.LocalID = m.ID
		m.Role = model.Role(role)
		m.CreatedAt = time.Unix(0, created)
		if actions.Valid && actions.String != "" {
			if err := json.Unmarshal([]byte(actions.String), &m.Actions); err != nil {
				return nil, fmt.Errorf("failed to decode actions: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
