// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/counsellor/internal/counsellor"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/ui/styles"
	"github.com/jeranaias/counsellor/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// sidebarWidth is the width of the history sidebar in wide layouts.
	sidebarWidth = 32

	// inputHeight is the number of text rows in the input box.
	inputHeight = 1

	// maxInputLength caps a single message.
	maxInputLength = 4000
)

// focusArea is the element receiving keystrokes.
type focusArea int

const (
	focusInput focusArea = iota
	focusHistory
	focusRename
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	backend Backend
	prober  Prober
	theme   *styles.Theme
	keys    KeyMap
	help    help.Model

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	rename   textinput.Model

	// Transcript as last reported by the session
	messages   []model.Message
	unrevealed map[string]bool
	revealID   string
	revealText string
	rendered   map[string]string

	// Pipeline and server state
	state     counsellor.State
	sending   bool
	status    model.ServerStatus
	notice    string
	noticeID  int
	recording bool
	speaking  string

	// History
	conversations []model.Conversation
	activeID      string
	showHistory   bool
	cursor        int

	focus      focusArea
	quickIndex int
	showHelp   bool

	width  int
	height int
	ready  bool

	now func() time.Time
}

// New creates the chat model for a session. prober may be nil.
func New(backend Backend, prober Prober, theme *styles.Theme) Model {
	if theme == nil {
		theme = styles.NewTheme()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask the AI Counsellor..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = maxInputLength
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Emerald)),
	)

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 120

	return Model{
		backend:    backend,
		prober:     prober,
		theme:      theme,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		input:      ta,
		viewport:   viewport.New(80, 20),
		spinner:    sp,
		rename:     ti,
		messages:   backend.Messages(),
		unrevealed: make(map[string]bool),
		rendered:   make(map[string]string),
		status:     backend.Status(),
		activeID:   backend.ActiveConversation(),
		quickIndex: -1,
		now:        time.Now,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		resumeCmd(m.backend),
		listCmd(m.backend),
	)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.ready = true
		m.rendered = make(map[string]string)
		m.layout()
		m.refresh(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		return m.handleEvent(msg.Event)

	case sendDoneMsg:
		if msg.Err != nil && !errors.Is(msg.Err, counsellor.ErrEmptyMessage) {
			cmds = append(cmds, m.setNotice(describeError(msg.Err)))
		}
		return m, tea.Batch(cmds...)

	case conversationsMsg:
		if msg.Err != nil {
			return m.withNotice("Could not load history: " + msg.Err.Error())
		}
		m.conversations = msg.Conversations
		m.clampCursor()
		return m, nil

	case opDoneMsg:
		cmd := m.handleOpDone(msg)
		return m, cmd

	case probeResultMsg:
		switch {
		case !msg.Allowed:
			return m.withNotice("Please wait a moment before checking again.")
		case msg.Result == health.Ready:
			return m.withNotice(styles.StatusIndicators.Success + " AI Counsellor is ready.")
		}
		return m, nil

	case clearNoticeMsg:
		if msg.ID == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.sending {
			m.refresh(false)
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey routes a key press to the focused element.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.focus {
	case focusRename:
		return m.handleRenameKey(msg)
	case focusHistory:
		return m.handleHistoryKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.History):
		return m.openHistory()

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Retry):
		return m, retryCmd(m.backend)

	case key.Matches(msg, m.keys.NewChat):
		return m, newChatCmd(m.backend)

	case key.Matches(msg, m.keys.Record):
		if !m.backend.VoiceInput() {
			return m.withNotice(describeError(counsellor.ErrVoiceUnavailable))
		}
		return m, recordCmd(m.backend)

	case key.Matches(msg, m.keys.Speak):
		if !m.backend.VoiceOutput() {
			return m.withNotice(describeError(counsellor.ErrVoiceUnavailable))
		}
		last, ok := lastAssistant(m.messages)
		if !ok {
			return m.withNotice("There is no reply to read aloud yet.")
		}
		return m, speakCmd(m.backend, last.LocalID)

	case key.Matches(msg, m.keys.Copy):
		last, ok := lastAssistant(m.messages)
		if !ok {
			return m.withNotice("There is no reply to copy yet.")
		}
		if err := clipboard.WriteAll(last.Content); err != nil {
			return m.withNotice("Could not copy: " + err.Error())
		}
		return m.withNotice(styles.StatusIndicators.Success + " Reply copied.")

	case key.Matches(msg, m.keys.CheckServer):
		if m.prober == nil {
			return m, nil
		}
		return m, probeCmd(m.prober)

	case key.Matches(msg, m.keys.NextPrompt):
		if len(m.messages) == 0 {
			m.quickIndex = (m.quickIndex + 1) % len(QuickPrompts)
			m.refresh(false)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.backend.SetInput(after)
		if m.quickIndex >= 0 && strings.TrimSpace(after) != "" {
			m.quickIndex = -1
			m.refresh(false)
		}
	}
	return m, cmd
}

// submit sends the input, or the highlighted suggestion when the input is
// blank.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := util.Normalize(m.input.Value())
	if text == "" && len(m.messages) == 0 && m.quickIndex >= 0 {
		text = QuickPrompts[m.quickIndex]
	}
	if text == "" {
		return m, nil
	}
	if m.sending {
		return m.withNotice(describeError(counsellor.ErrSendInFlight))
	}

	m.backend.SetInput(text)
	m.input.Reset()
	m.quickIndex = -1
	return m, submitCmd(m.backend)
}

func (m Model) openHistory() (tea.Model, tea.Cmd) {
	if m.showHistory && m.focus == focusInput && m.theme.ShowSidebar() {
		m.showHistory = false
		m.layout()
		m.refresh(false)
		return m, nil
	}
	m.showHistory = true
	m.focus = focusHistory
	m.input.Blur()
	m.layout()
	m.refresh(false)
	return m, listCmd(m.backend)
}

func (m Model) closeHistory() (tea.Model, tea.Cmd) {
	m.focus = focusInput
	if !m.theme.ShowSidebar() {
		m.showHistory = false
	}
	m.layout()
	m.refresh(false)
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.History):
		return m.closeHistory()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.conversations)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		conv, ok := m.selected()
		if !ok {
			return m, nil
		}
		next, cmd := m.closeHistory()
		return next, tea.Batch(cmd, selectCmd(m.backend, conv.ID))

	case key.Matches(msg, m.keys.Rename):
		conv, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.focus = focusRename
		m.rename.SetValue(conv.Title)
		m.rename.CursorEnd()
		cmd := m.rename.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Delete):
		conv, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, deleteCmd(m.backend, conv.ID)

	case key.Matches(msg, m.keys.NewChat):
		next, cmd := m.closeHistory()
		return next, tea.Batch(cmd, newChatCmd(m.backend))
	}
	return m, nil
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = focusHistory
		m.rename.Blur()
		return m, nil
	case tea.KeyEnter:
		m.focus = focusHistory
		m.rename.Blur()
		title := util.Normalize(m.rename.Value())
		conv, ok := m.selected()
		if !ok || title == "" || title == conv.Title {
			return m, nil
		}
		return m, renameCmd(m.backend, conv.ID, title)
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

// handleEvent applies a session event.
func (m Model) handleEvent(ev counsellor.Event) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch ev := ev.(type) {
	case counsellor.TranscriptEvent:
		if m.sending {
			known := make(map[string]bool, len(m.messages))
			for _, msg := range m.messages {
				known[msg.LocalID] = true
			}
			for _, msg := range ev.Messages {
				if msg.IsAssistant() && !known[msg.LocalID] {
					m.unrevealed[msg.LocalID] = true
				}
			}
		}
		m.messages = ev.Messages
		if len(m.messages) > 0 {
			m.quickIndex = -1
		}
		m.refresh(true)

	case counsellor.StateEvent:
		m.state = ev.State
		m.sending = ev.State == counsellor.StateSending
		if ev.State != counsellor.StateSending && ev.State != counsellor.StateDelivered {
			m.unrevealed = make(map[string]bool)
		}
		// Waking notices are carried by the status banner.
		if ev.Notice != "" && ev.State != counsellor.StateWaking {
			cmd = m.setNotice(ev.Notice)
		}
		m.refresh(true)

	case counsellor.StatusEvent:
		m.status = ev.Status
		m.layout()
		m.refresh(false)

	case counsellor.RevealEvent:
		delete(m.unrevealed, ev.LocalID)
		if ev.Done {
			if m.revealID == ev.LocalID {
				m.revealID, m.revealText = "", ""
			}
		} else {
			m.revealID, m.revealText = ev.LocalID, ev.Text
		}
		m.refresh(m.viewport.AtBottom())

	case counsellor.InputEvent:
		m.input.SetValue(ev.Text)
		m.input.CursorEnd()

	case counsellor.RecordingEvent:
		m.recording = ev.Recording

	case counsellor.PlaybackEvent:
		m.speaking = ev.Key
		m.refresh(false)

	case counsellor.ConversationEvent:
		m.activeID = ev.ID
		m.revealID, m.revealText = "", ""

	case counsellor.HistoryEvent:
		cmd = listCmd(m.backend)

	case counsellor.NoticeEvent:
		cmd = m.setNotice(ev.Message)
	}
	return m, cmd
}

func (m *Model) handleOpDone(msg opDoneMsg) tea.Cmd {
	if msg.Err == nil {
		return nil
	}
	switch {
	case msg.Op == "resume":
		return m.setNotice("Could not restore your last conversation.")
	case (msg.Op == "record" || msg.Op == "speak") &&
		!errors.Is(msg.Err, counsellor.ErrVoiceUnavailable) &&
		!errors.Is(msg.Err, counsellor.ErrUnknownMessage):
		// The session has already reported voice failures.
		return nil
	}
	return m.setNotice("Could not " + msg.Op + ": " + describeError(msg.Err))
}

// withNotice returns m showing text.
func (m Model) withNotice(text string) (Model, tea.Cmd) {
	cmd := m.setNotice(text)
	return m, cmd
}

// setNotice shows text in the status bar for a while.
func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeID++
	m.notice = text
	return clearNoticeCmd(m.noticeID)
}

func (m Model) selected() (model.Conversation, bool) {
	if m.cursor < 0 || m.cursor >= len(m.conversations) {
		return model.Conversation{}, false
	}
	return m.conversations[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.conversations) {
		m.cursor = len(m.conversations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// describeError turns a session error into user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, counsellor.ErrSendInFlight):
		return "Please wait for the current reply."
	case errors.Is(err, counsellor.ErrNothingToRetry):
		return "There is no message to retry."
	case errors.Is(err, counsellor.ErrVoiceUnavailable):
		return "Voice is not set up. Enable it in the config to use the microphone."
	case errors.Is(err, counsellor.ErrUnknownMessage):
		return "That message is no longer available."
	case errors.Is(err, counsellor.ErrEmptyMessage):
		return "Type a message first."
	}
	return err.Error()
}

// =============================================================================
// LAYOUT
// =============================================================================

// chatWidth is the width left for the transcript.
func (m Model) chatWidth() int {
	if m.showHistory && m.theme.ShowSidebar() {
		return m.width - sidebarWidth
	}
	return m.width
}

// layout sizes the viewport and input to the window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	w := m.chatWidth()
	m.input.SetWidth(calculateContentWidth(w, 4))
	m.help.Width = w

	used := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.inputView()) +
		lipgloss.Height(m.statusView()) +
		lipgloss.Height(m.helpView())
	if banner := m.bannerView(); banner != "" {
		used += lipgloss.Height(banner)
	}

	m.viewport.Width = w
	m.viewport.Height = m.height - used
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh(toBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcriptView(m.viewport.Width))
	if toBottom {
		m.viewport.GotoBottom()
	}
}
