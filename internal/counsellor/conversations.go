// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package counsellor

import (
	"context"
	"fmt"

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// Resume waits for the backend to be ready, then loads the most recent
// conversation. It does nothing when the user has already started chatting
// or when no conversation is stored. Without a prober it loads immediately.
func (s *Session) Resume(ctx context.Context) error {
	if s.prober != nil {
		select {
		case <-s.prober.Ready():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.store.ActiveID() != "" || !s.transcript.IsEmpty() {
		return nil
	}

	conv, ok, err := s.store.MostRecent(ctx)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	if !ok {
		return nil
	}
	return s.Select(ctx, conv.ID)
}

// Select makes a stored conversation active and loads its transcript.
// Loaded replies are shown whole, without a reveal.
func (s *Session) Select(ctx context.Context, id string) error {
	if s.Sending() {
		return ErrSendInFlight
	}

	s.leaveConversation()

	msgs, err := s.store.LoadTranscript(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	s.store.SetActive(id)
	s.transcript.Replace(msgs)
	s.setIdle()

	s.log.WithField("conversation_id", id).Debug("conversation selected")
	s.notify(ConversationEvent{ID: id})
	s.emitTranscript()
	return nil
}

// NewConversation clears the transcript. The conversation itself is created
// when its first message is persisted.
func (s *Session) NewConversation() error {
	if s.Sending() {
		return ErrSendInFlight
	}

	s.leaveConversation()
	s.store.Reset()
	s.transcript.Clear()
	s.setIdle()

	s.notify(ConversationEvent{})
	s.emitTranscript()
	return nil
}

// Delete removes a stored conversation. Deleting the active conversation
// starts a new one.
func (s *Session) Delete(ctx context.Context, id string) error {
	if s.Sending() && id == s.store.ActiveID() {
		return ErrSendInFlight
	}

	s.queue.Drain()
	wasActive, err := s.store.DeleteConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	s.notify(HistoryEvent{})

	if wasActive {
		if s.playback != nil {
			s.playback.StopAll()
		}
		s.cancelReveals()
		s.transcript.Clear()
		s.setIdle()
		s.notify(ConversationEvent{})
		s.emitTranscript()
	}
	return nil
}

// Rename changes a stored conversation's title.
func (s *Session) Rename(ctx context.Context, id, title string) error {
	if err := s.store.RenameConversation(ctx, id, title); err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	s.notify(HistoryEvent{})
	return nil
}

// Conversations lists stored conversations, most recent first.
func (s *Session) Conversations(ctx context.Context) ([]model.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// leaveConversation stops narration and reveal of the current transcript
// and writes its pending messages before the active id changes.
func (s *Session) leaveConversation() {
	if s.playback != nil {
		s.playback.StopAll()
		s.notify(PlaybackEvent{})
	}
	s.cancelReveals()
	s.queue.Drain()
}

func (s *Session) setIdle() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	s.notify(StateEvent{State: StateIdle})
}
