// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// CONVERSATION STORE ADAPTER
// =============================================================================

// Adapter wraps a Service for one chat session. It owns the active
// conversation id and creates the conversation lazily.
type Adapter struct {
	svc    Service
	userID string
	log    *logrus.Entry
	now    func() time.Time

	mu       sync.Mutex
	activeID string
	// gen changes whenever the active conversation is set from outside, so
	// a create that was in flight does not overwrite the new choice.
	gen uint64

	create singleflight.Group
}

// NewAdapter creates an adapter for userID. log may be nil.
func NewAdapter(svc Service, userID string, log *logrus.Entry) *Adapter {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Adapter{
		svc:    svc,
		userID: userID,
		log:    log.WithField("component", "storage"),
		now:    time.Now,
	}
}

// UserID returns the owning user id.
func (a *Adapter) UserID() string {
	return a.userID
}

// ActiveID returns the active conversation id, empty when none exists yet.
func (a *Adapter) ActiveID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeID
}

// SetActive makes id the active conversation.
func (a *Adapter) SetActive(id string) {
	a.mu.Lock()
	a.activeID = id
	a.gen++
	a.mu.Unlock()
}

// Reset clears the active conversation so the next persisted message
// starts a new one.
func (a *Adapter) Reset() {
	a.SetActive("")
}

// EnsureConversation returns the active conversation id, creating the
// conversation from firstText when none is active. Concurrent callers share
// a single creation. The lock is not held while the service is called, so
// ActiveID never waits on storage.
func (a *Adapter) EnsureConversation(ctx context.Context, firstText string) (id string, created bool, err error) {
	a.mu.Lock()
	if a.activeID != "" {
		id = a.activeID
		a.mu.Unlock()
		return id, false, nil
	}
	gen := a.gen
	a.mu.Unlock()

	v, err, _ := a.create.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		a.mu.Lock()
		if a.activeID != "" && a.gen == gen {
			id := a.activeID
			a.mu.Unlock()
			return id, nil
		}
		a.mu.Unlock()

		conv, err := a.svc.CreateConversation(ctx, a.userID, model.DeriveTitle(firstText))
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		if a.gen == gen && a.activeID == "" {
			a.activeID = conv.ID
		}
		a.mu.Unlock()

		created = true
		a.log.WithFields(logrus.Fields{
			"conversation_id": conv.ID,
			"title":           conv.Title,
		}).Info("created conversation")
		return conv.ID, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), created, nil
}

// AppendMessage bumps the conversation's last activity and stores one
// message. A failure is logged and reported as ok == false.
func (a *Adapter) AppendMessage(ctx context.Context, conversationID string, role model.Role, content string, actions []model.Action) (id string, ok bool) {
	log := a.log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"role":            role,
	})

	if err := a.svc.TouchConversation(ctx, conversationID, a.now()); err != nil {
		log.WithError(err).Warn("failed to update last activity")
	}

	msg, err := a.svc.InsertMessage(ctx, MessageInput{
		UserID:         a.userID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Actions:        actions,
	})
	if err != nil {
		log.WithError(err).Warn("failed to persist message")
		return "", false
	}
	return msg.ID, true
}

// PersistResult describes one persisted message.
type PersistResult struct {
	ConversationID string
	MessageID      string

	// Created is true when this call created the conversation.
	Created bool
}

// Persist stores a message in the active conversation, creating the
// conversation first if needed.
func (a *Adapter) Persist(ctx context.Context, role model.Role, content string, actions []model.Action) (PersistResult, error) {
	if a.userID == "" {
		return PersistResult{}, ErrNoUser
	}

	convID, created, err := a.EnsureConversation(ctx, content)
	if err != nil {
		a.log.WithError(err).Warn("failed to create conversation")
		return PersistResult{}, err
	}

	res := PersistResult{ConversationID: convID, Created: created}
	id, ok := a.AppendMessage(ctx, convID, role, content, actions)
	if ok {
		res.MessageID = id
	}
	return res, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// LoadTranscript returns the conversation's messages in creation order.
func (a *Adapter) LoadTranscript(ctx context.Context, conversationID string) ([]model.Message, error) {
	return a.svc.ListMessages(ctx, conversationID)
}

// ListConversations returns this user's conversations, most recent first.
func (a *Adapter) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return a.svc.ListConversations(ctx, a.userID)
}

// MostRecent returns the conversation with the latest activity, if any.
func (a *Adapter) MostRecent(ctx context.Context) (model.Conversation, bool, error) {
	convs, err := a.ListConversations(ctx)
	if err != nil || len(convs) == 0 {
		return model.Conversation{}, false, err
	}
	return convs[0], true, nil
}

// Lookup resolves ref to one of this user's conversations. ref may be a full
// id, a unique id prefix, or a 1-based position in ListConversations order.
func (a *Adapter) Lookup(ctx context.Context, ref string) (model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Conversation{}, ErrNotFound
	}
	convs, err := a.ListConversations(ctx)
	if err != nil {
		return model.Conversation{}, err
	}

	for _, c := range convs {
		if c.ID == ref {
			return c, nil
		}
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(convs) {
			return convs[n-1], nil
		}
		return model.Conversation{}, fmt.Errorf("%w: no conversation #%d", ErrNotFound, n)
	}

	var match []model.Conversation
	for _, c := range convs {
		if strings.HasPrefix(c.ID, ref) {
			match = append(match, c)
		}
	}
	switch len(match) {
	case 0:
		return model.Conversation{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return match[0], nil
	}
	return model.Conversation{}, fmt.Errorf("%w: %q matches %d conversations", ErrAmbiguous, ref, len(match))
}

// DeleteConversation removes a conversation. If it was active the active
// reference is cleared. Returns whether the active conversation was reset.
func (a *Adapter) DeleteConversation(ctx context.Context, id string) (wasActive bool, err error) {
	if err := a.svc.DeleteConversation(ctx, id); err != nil {
		return false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeID == id {
		a.activeID = ""
		return true, nil
	}
	return false, nil
}

// RenameConversation changes a conversation's title. Empty titles fall back
// to the default title.
func (a *Adapter) RenameConversation(ctx context.Context, id, title string) error {
	t := model.DeriveTitle(title)
	return a.svc.RenameConversation(ctx, id, t)
}
