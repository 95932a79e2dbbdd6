// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package counsellor

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/counsellor/internal/api"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/reveal"
	"github.com/jeranaias/counsellor/internal/storage"
	"github.com/jeranaias/counsellor/internal/tasks"
	"github.com/jeranaias/counsellor/internal/voice"
)

// DefaultSendTimeout bounds one chat call.
const DefaultSendTimeout = 120 * time.Second

// FallbackReply is appended when a send fails for a reason other than a
// cold backend.
const FallbackReply = "I'm sorry, I encountered an error. Please try again."

// SignInNotice is shown when no credential is available.
const SignInNotice = "Please sign in to chat with the AI Counsellor."

var (
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSendInFlight is returned when a send is already outstanding.
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrNothingToRetry is returned by Retry when no user message exists.
	ErrNothingToRetry = errors.New("no message to retry")

	// ErrVoiceUnavailable is returned when no recorder or player is set up.
	ErrVoiceUnavailable = errors.New("voice is not available")

	// ErrUnknownMessage is returned by Speak for a key not in the transcript.
	ErrUnknownMessage = errors.New("message not found")
)

// ChatBackend is the inference collaborator. api.Client satisfies it.
type ChatBackend interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	SignedIn(ctx context.Context) bool
}

// =============================================================================
// CONFIG
// =============================================================================

// Config wires a Session to its collaborators. Chat and Store are required;
// nil optional fields get working defaults or disable the feature.
type Config struct {
	Chat  ChatBackend
	Store *storage.Adapter

	// Tracker is the shared server status (default: new tracker)
	Tracker *model.StatusTracker

	// Prober gates Resume until the backend is ready (optional)
	Prober *health.Prober

	// Reveal paces reply display (default: reveal.New())
	Reveal *reveal.Scheduler

	// Queue runs persistence jobs in order (default: owned queue)
	Queue *tasks.Queue

	// Voice capture needs both Device and STT.
	Device voice.Device
	STT    voice.Transcriber

	// Voice playback needs both TTS and Player.
	TTS    voice.Synthesizer
	Player voice.Player

	// Notify receives every event (default: dropped)
	Notify func(Event)

	// SendTimeout bounds one chat call (default: DefaultSendTimeout)
	SendTimeout time.Duration

	Logger *logrus.Entry
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one interactive counsellor chat.
type Session struct {
	chat        ChatBackend
	store       *storage.Adapter
	tracker     *model.StatusTracker
	prober      *health.Prober
	reveal      *reveal.Scheduler
	queue       *tasks.Queue
	ownsQueue   bool
	capture     *voice.Capture
	playback    *voice.Playback
	notify      func(Event)
	sendTimeout time.Duration
	log         *logrus.Entry

	// ctx outlives individual calls; voice work started by a call runs
	// under it and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	transcript *model.Transcript

	mu      sync.Mutex
	state   State
	sending bool
	input   string

	revealMu  sync.Mutex
	reveals   []model.Message
	revealing bool
}

// New creates a session.
func New(cfg Config) (*Session, error) {
	if cfg.Chat == nil {
		return nil, errors.New("counsellor: chat backend is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("counsellor: store is required")
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = logrus.NewEntry(l)
	}
	if cfg.Tracker == nil {
		cfg.Tracker = model.NewStatusTracker()
	}
	if cfg.Reveal == nil {
		cfg.Reveal = reveal.New()
	}
	if cfg.Notify == nil {
		cfg.Notify = func(Event) {}
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		chat:        cfg.Chat,
		store:       cfg.Store,
		tracker:     cfg.Tracker,
		prober:      cfg.Prober,
		reveal:      cfg.Reveal,
		queue:       cfg.Queue,
		notify:      cfg.Notify,
		sendTimeout: cfg.SendTimeout,
		log:         cfg.Logger.WithField("component", "counsellor"),
		ctx:         ctx,
		cancel:      cancel,
		transcript:  model.NewTranscript(),
	}

	if s.queue == nil {
		s.queue = tasks.NewQueue(tasks.Options{Logger: cfg.Logger})
		s.ownsQueue = true
	}
	if cfg.Device != nil && cfg.STT != nil {
		s.capture = voice.NewCapture(cfg.Device, cfg.STT, s.onTranscript, cfg.Logger)
	}
	if cfg.TTS != nil && cfg.Player != nil {
		s.playback = voice.NewPlayback(cfg.TTS, cfg.Player, s.onPlaybackEnd, cfg.Logger)
	}

	s.tracker.Subscribe(func(st model.ServerStatus) {
		s.notify(StatusEvent{Status: st})
	})
	return s, nil
}

// Close stops voice, cancels any reveal and flushes pending persistence.
func (s *Session) Close() {
	s.cancel()
	if s.capture != nil {
		s.capture.Close()
	}
	if s.playback != nil {
		s.playback.StopAll()
	}
	s.cancelReveals()
	if s.ownsQueue {
		s.queue.Close()
	} else {
		s.queue.Drain()
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sending reports whether a send is outstanding.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Messages returns the ordered transcript.
func (s *Session) Messages() []model.Message {
	return s.transcript.Messages()
}

// Status returns the shared server status.
func (s *Session) Status() model.ServerStatus {
	return s.tracker.Snapshot()
}

// Tracker returns the shared server status record.
func (s *Session) Tracker() *model.StatusTracker {
	return s.tracker
}

// ActiveConversation returns the active conversation id, "" before the
// first message is persisted.
func (s *Session) ActiveConversation() string {
	return s.store.ActiveID()
}

// Input returns the input buffer.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInput replaces the input buffer, e.g. as the user types.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Revealing reports whether a reply is being revealed.
func (s *Session) Revealing() bool {
	s.revealMu.Lock()
	defer s.revealMu.Unlock()
	return s.revealing
}

// Drain waits until queued persistence has been written.
func (s *Session) Drain() {
	s.queue.Drain()
}

func (s *Session) emitTranscript() {
	s.notify(TranscriptEvent{Messages: s.transcript.Messages()})
}
