// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package counsellor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/counsellor/internal/api"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/util"
)

// =============================================================================
// SEND PIPELINE
// =============================================================================

// Submit sends the input buffer and clears it. Blank input is rejected with
// ErrEmptyMessage and a send in flight with ErrSendInFlight; in both cases
// the buffer is left as it was.
func (s *Session) Submit(ctx context.Context) (State, error) {
	s.mu.Lock()
	text := util.Normalize(s.input)
	switch {
	case text == "":
		state := s.state
		s.mu.Unlock()
		return state, ErrEmptyMessage
	case s.sending:
		s.mu.Unlock()
		return StateSending, ErrSendInFlight
	}
	s.input = ""
	s.mu.Unlock()

	s.notify(InputEvent{})
	return s.Send(ctx, text)
}

// Send runs one message through the pipeline and blocks until its outcome.
// The user message is appended before the network call and persisted in the
// background. Outcomes are reported as the returned state and as events;
// the error is non-nil only when the send was refused.
func (s *Session) Send(ctx context.Context, text string) (State, error) {
	text = util.Normalize(text)
	if text == "" {
		return s.State(), ErrEmptyMessage
	}
	if !s.begin() {
		return StateSending, ErrSendInFlight
	}
	if !s.chat.SignedIn(ctx) {
		return s.finish(StateFailed, SignInNotice), nil
	}

	msg := s.transcript.Append(model.NewUserMessage(text))
	s.emitTranscript()
	s.persist(msg)

	return s.deliver(ctx, text), nil
}

// Retry replays the last user message through the pipeline without
// appending or persisting it again.
func (s *Session) Retry(ctx context.Context) (State, error) {
	if s.Sending() {
		return StateSending, ErrSendInFlight
	}
	last, ok := s.transcript.LastUser()
	if !ok {
		return s.State(), ErrNothingToRetry
	}
	if !s.begin() {
		return StateSending, ErrSendInFlight
	}
	if !s.chat.SignedIn(ctx) {
		return s.finish(StateFailed, SignInNotice), nil
	}

	s.log.WithField("message", last.Key()).Debug("retrying last message")
	return s.deliver(ctx, last.Content), nil
}

// begin enters Sending unless a send is already outstanding.
func (s *Session) begin() bool {
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return false
	}
	s.sending = true
	s.state = StateSending
	s.mu.Unlock()

	// A previous outcome's detail no longer applies.
	s.tracker.ClearMessage()
	s.notify(StateEvent{State: StateSending})
	return true
}

// finish leaves Sending for state.
func (s *Session) finish(state State, notice string) State {
	s.mu.Lock()
	s.sending = false
	s.state = state
	s.mu.Unlock()

	s.notify(StateEvent{State: state, Notice: notice})
	return state
}

// deliver performs the chat call and applies its outcome.
func (s *Session) deliver(ctx context.Context, text string) State {
	callCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	req := api.ChatRequest{Message: text}
	if id := s.store.ActiveID(); id != "" {
		req.ConversationID = &id
	}

	start := time.Now()
	resp, err := s.chat.Chat(callCtx, req)
	outcome := api.Classify(err)

	log := s.log.WithFields(logrus.Fields{
		"outcome":  outcome.String(),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	})

	switch outcome {
	case api.OutcomeOK:
		log.Debug("reply received")
		s.tracker.MarkReady()
		reply := s.transcript.Append(model.NewAssistantMessage(resp.Response, resp.Actions))
		s.emitTranscript()
		s.persist(reply)
		s.startReveal(reply)
		return s.finish(StateDelivered, "")

	case api.OutcomeWaking:
		notice := api.DetailOf(err)
		if notice == "" {
			notice = health.WakingMessage
		}
		status := s.tracker.MarkWaking(notice)
		log.WithError(err).WithField("retry_count", status.RetryCount).Info("backend waking up")
		return s.finish(StateWaking, notice)

	case api.OutcomeUnauthenticated:
		log.Info("send refused without credential")
		return s.finish(StateFailed, SignInNotice)

	default:
		log.WithError(err).Warn("send failed")
		reply := s.transcript.Append(model.NewAssistantMessage(FallbackReply, nil))
		s.emitTranscript()
		s.persist(reply)
		return s.finish(StateFailed, api.DetailOf(err))
	}
}

// persist queues msg for storage. Jobs run in submission order, so a user
// message is always written before its reply.
func (s *Session) persist(msg model.Message) {
	_, err := s.queue.Submit("persist "+msg.Role.String()+" message", func(ctx context.Context) error {
		res, err := s.store.Persist(ctx, msg.Role, msg.Content, msg.Actions)
		if err != nil {
			return err
		}
		if res.Created {
			s.notify(ConversationEvent{ID: res.ConversationID})
			s.notify(HistoryEvent{})
		}
		if res.MessageID != "" {
			s.transcript.SetID(msg.LocalID, res.MessageID, res.ConversationID)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("role", msg.Role).Warn("failed to queue message persistence")
	}
}

// =============================================================================
// REVEAL
// =============================================================================

// startReveal queues msg for progressive display. A run in progress is
// never interrupted; the next reply starts when it completes.
func (s *Session) startReveal(msg model.Message) {
	s.revealMu.Lock()
	s.reveals = append(s.reveals, msg)
	idle := !s.revealing
	s.revealing = true
	s.revealMu.Unlock()

	if idle {
		s.nextReveal()
	}
}

func (s *Session) nextReveal() {
	s.revealMu.Lock()
	if len(s.reveals) == 0 {
		s.revealing = false
		s.revealMu.Unlock()
		return
	}
	msg := s.reveals[0]
	s.reveals = s.reveals[1:]
	s.revealMu.Unlock()

	err := s.reveal.Start(msg.Content,
		func(prefix string) {
			s.notify(RevealEvent{LocalID: msg.LocalID, Text: prefix})
		},
		func() {
			s.notify(RevealEvent{LocalID: msg.LocalID, Text: msg.Content, Done: true})
			s.nextReveal()
		},
	)
	if err != nil {
		// The scheduler is shared with another owner; show the reply whole.
		s.log.WithError(err).Debug("reveal unavailable")
		s.notify(RevealEvent{LocalID: msg.LocalID, Text: msg.Content, Done: true})
		s.nextReveal()
	}
}

// cancelReveals drops queued reveals and stops the active one.
func (s *Session) cancelReveals() {
	s.revealMu.Lock()
	s.reveals = nil
	s.revealing = false
	s.revealMu.Unlock()

	s.reveal.Cancel()
}
