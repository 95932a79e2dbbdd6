// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/counsellor/internal/counsellor"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the session the view drives. *counsellor.Session satisfies it.
type Backend interface {
	Submit(ctx context.Context) (counsellor.State, error)
	Retry(ctx context.Context) (counsellor.State, error)
	SetInput(text string)
	Messages() []model.Message
	Status() model.ServerStatus
	ActiveConversation() string

	Resume(ctx context.Context) error
	Conversations(ctx context.Context) ([]model.Conversation, error)
	Select(ctx context.Context, id string) error
	NewConversation() error
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, title string) error

	VoiceInput() bool
	VoiceOutput() bool
	ToggleRecording(ctx context.Context) (bool, error)
	Speak(ctx context.Context, key string) error
}

// Prober lets the user ask for an immediate health check.
// *health.Prober satisfies it.
type Prober interface {
	RetryNow(ctx context.Context) (health.Result, bool)
}

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg delivers a session event to the program.
type EventMsg struct {
	Event counsellor.Event
}

// sendDoneMsg reports the end of a send or retry.
type sendDoneMsg struct {
	State counsellor.State
	Err   error
}

// conversationsMsg carries a refreshed history listing.
type conversationsMsg struct {
	Conversations []model.Conversation
	Err           error
}

// opDoneMsg reports the end of a history or voice operation.
type opDoneMsg struct {
	Op  string
	Err error
}

// probeResultMsg reports a manual health check.
type probeResultMsg struct {
	Result  health.Result
	Allowed bool
}

// clearNoticeMsg expires a transient notice.
type clearNoticeMsg struct {
	ID int
}

// =============================================================================
// COMMANDS
// =============================================================================

// opTimeout bounds history operations started from the UI.
const opTimeout = 30 * time.Second

// noticeTTL is how long transient notices stay on screen.
const noticeTTL = 6 * time.Second

func submitCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		state, err := b.Submit(context.Background())
		return sendDoneMsg{State: state, Err: err}
	}
}

func retryCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		state, err := b.Retry(context.Background())
		return sendDoneMsg{State: state, Err: err}
	}
}

func resumeCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "resume", Err: b.Resume(context.Background())}
	}
}

func listCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		convs, err := b.Conversations(ctx)
		return conversationsMsg{Conversations: convs, Err: err}
	}
}

func selectCmd(b Backend, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{Op: "open", Err: b.Select(ctx, id)}
	}
}

func newChatCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "new chat", Err: b.NewConversation()}
	}
}

func deleteCmd(b Backend, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{Op: "delete", Err: b.Delete(ctx, id)}
	}
}

func renameCmd(b Backend, id, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{Op: "rename", Err: b.Rename(ctx, id, title)}
	}
}

func recordCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		_, err := b.ToggleRecording(context.Background())
		return opDoneMsg{Op: "record", Err: err}
	}
}

func speakCmd(b Backend, key string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{Op: "speak", Err: b.Speak(context.Background(), key)}
	}
}

func probeCmd(p Prober) tea.Cmd {
	return func() tea.Msg {
		res, allowed := p.RetryNow(context.Background())
		return probeResultMsg{Result: res, Allowed: allowed}
	}
}

func clearNoticeCmd(id int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{ID: id}
	})
}

// =============================================================================
// FORWARDER
// =============================================================================

// Forwarder hands session events to a running program in order. Events
// raised before Attach are buffered. Delivery runs on its own goroutine so
// session calls made from Update never block on the program's inbox.
type Forwarder struct {
	mu      sync.Mutex
	program *tea.Program
	pending []counsellor.Event
	stopped bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewForwarder creates a forwarder with no program attached.
func NewForwarder() *Forwarder {
	return &Forwarder{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Notify queues ev for delivery. It is safe to pass as counsellor.Config.Notify.
func (f *Forwarder) Notify(ev counsellor.Event) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}
	f.pending = append(f.pending, ev)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Attach starts delivering to p, beginning with anything buffered.
func (f *Forwarder) Attach(p *tea.Program) {
	f.mu.Lock()
	attached := f.program != nil
	f.program = p
	f.mu.Unlock()

	if !attached {
		go f.pump()
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Stop ends delivery and drops undelivered events.
func (f *Forwarder) Stop() {
	f.once.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.pending = nil
		f.mu.Unlock()
		close(f.done)
	})
}

// Pending returns the number of undelivered events.
func (f *Forwarder) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *Forwarder) pump() {
	for {
		select {
		case <-f.wake:
		case <-f.done:
			return
		}

		for {
			f.mu.Lock()
			batch := f.pending
			f.pending = nil
			p := f.program
			f.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				select {
				case <-f.done:
					return
				default:
				}
				p.Send(EventMsg{Event: ev})
			}
		}
	}
}
