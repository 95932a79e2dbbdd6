// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/markdown"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/ui/styles"
	"github.com/jeranaias/counsellor/internal/util"
)

// revealCursor trails a reply while it is being revealed.
const revealCursor = "▌"

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting AI Counsellor..."
	}

	parts := []string{m.headerView()}
	if banner := m.bannerView(); banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts,
		m.viewport.View(),
		m.inputView(),
		m.statusView(),
		m.helpView(),
	)
	chat := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if !m.showHistory {
		return chat
	}
	if !m.theme.ShowSidebar() {
		return m.sidebarView(m.width, m.height)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(sidebarWidth, m.height), chat)
}

// =============================================================================
// HEADER AND BANNER
// =============================================================================

func (m Model) headerView() string {
	w := m.chatWidth()
	title := m.theme.HeaderTitle.Render("AI Counsellor")
	conv := m.theme.HeaderTag.Render(util.TruncateWidth(conversationTitle(m.conversations, m.activeID), w/2))

	var tags []string
	if m.recording {
		tags = append(tags, m.theme.Recording.Render("[REC]"))
	}
	if m.speaking != "" {
		tags = append(tags, m.theme.Speaking.Render("speaking"))
	}

	line := title + "  " + conv
	if len(tags) > 0 {
		line += "  " + strings.Join(tags, " ")
	}
	return m.theme.Header.Width(w).Render(line)
}

// bannerView is shown while the backend is waking up.
func (m Model) bannerView() string {
	if !m.status.Waking {
		return ""
	}
	text := m.status.Message
	if text == "" {
		text = health.WakingMessage
	}
	line := styles.StatusIndicators.Warning + " " + text
	if m.status.ShowManualRetry() {
		line += "  Press " + m.keys.CheckServer.Help().Key + " to check again."
	}
	return m.theme.WakingBanner.Width(m.chatWidth()).Render(line)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// transcriptView renders every visible message, or the welcome screen.
func (m *Model) transcriptView(width int) string {
	if len(m.messages) == 0 && !m.sending {
		return m.welcomeView(width)
	}

	body := calculateContentWidth(width, 4)
	var blocks []string
	for _, msg := range m.messages {
		if m.unrevealed[msg.LocalID] {
			continue
		}
		if msg.IsUser() {
			blocks = append(blocks, m.userView(msg, body))
			continue
		}
		blocks = append(blocks, m.assistantView(msg, body))
	}

	if m.sending && len(m.unrevealed) == 0 {
		blocks = append(blocks, m.spinner.View()+" "+m.theme.Timestamp.Render("Counsellor is thinking..."))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) userView(msg model.Message, width int) string {
	label := m.theme.UserLabel.Render(model.RoleUser.DisplayName()) + "  " +
		m.theme.Timestamp.Render(formatTimestamp(msg.CreatedAt, m.now()))
	bubble := m.theme.UserBubble.Render(wrapText(msg.Content, width-4))
	return label + "\n" + bubble
}

func (m *Model) assistantView(msg model.Message, width int) string {
	label := m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()) + "  " +
		m.theme.Timestamp.Render(formatTimestamp(msg.CreatedAt, m.now()))
	if m.speaking == msg.LocalID {
		label += "  " + m.theme.Speaking.Render("speaking")
	}

	var body string
	if m.revealID == msg.LocalID {
		body = markdown.RenderWith(m.theme.Markdown, markdown.Parse(m.revealText), width-2) +
			m.theme.Cursor.Render(revealCursor)
	} else {
		body = m.renderedBody(msg, width-2)
	}

	out := label + "\n" + m.theme.AssistantBody.Render(body)
	if len(msg.Actions) > 0 {
		badges := make([]string, 0, len(msg.Actions))
		for _, l := range actionLabels(msg.Actions) {
			badges = append(badges, m.theme.ActionBadge.Render(l))
		}
		out += "\n" + strings.Join(badges, " ")
	}
	return out
}

// renderedBody caches the markdown rendering of a settled reply.
func (m *Model) renderedBody(msg model.Message, width int) string {
	if out, ok := m.rendered[msg.LocalID]; ok {
		return out
	}
	out := markdown.RenderWith(m.theme.Markdown, markdown.Parse(msg.Content), width)
	m.rendered[msg.LocalID] = out
	return out
}

// welcomeView is shown for an empty conversation.
func (m Model) welcomeView(width int) string {
	lines := []string{
		m.theme.WelcomeTitle.Render("Welcome to your AI Counsellor"),
		wrapText("Ask about universities, your admission chances, or what to do next.", calculateContentWidth(width, 6)),
		"",
	}
	for i, p := range QuickPrompts {
		style := m.theme.QuickPrompt
		if i == m.quickIndex {
			style = m.theme.QuickSelected
		}
		lines = append(lines, style.Render(p))
	}
	lines = append(lines, "", m.theme.Help.Render(
		m.keys.NextPrompt.Help().Key+" to pick a suggestion, "+m.keys.Submit.Help().Key+" to send"))
	return m.theme.Welcome.Render(strings.Join(lines, "\n"))
}

// =============================================================================
// INPUT, STATUS AND HELP
// =============================================================================

func (m Model) inputView() string {
	style := m.theme.InputContainer
	if m.focus == focusInput {
		style = m.theme.InputFocused
	}
	return style.Width(calculateContentWidth(m.chatWidth(), 2)).Render(m.input.View())
}

func (m Model) statusView() string {
	var left string
	switch m.status.State {
	case model.ServerReady:
		left = m.theme.AssistantLabel.Render(styles.StatusIndicators.Active) + " " + m.theme.StatusValue.Render("Ready")
	case model.ServerWaking:
		left = styles.RenderWarning("Waking")
	default:
		left = m.theme.StatusValue.Render(styles.StatusIndicators.Pending + " Connecting")
	}
	if m.sending {
		left += "  " + m.spinner.View() + m.theme.StatusValue.Render(" Sending")
	}

	right := m.notice
	if right == "" && m.state.CanRetry() {
		right = m.theme.StatusKey.Render(m.keys.Retry.Help().Key) + m.theme.StatusValue.Render(" to retry")
	}

	w := m.chatWidth()
	gap := w - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		right = util.TruncateWidth(right, w-lipgloss.Width(left)-3)
		gap = 1
	}
	return m.theme.StatusBar.Width(w).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) helpView() string {
	if m.focus != focusInput {
		return m.help.ShortHelpView(m.keys.historyHelp())
	}
	if m.showHelp {
		return m.help.FullHelpView(m.keys.FullHelp())
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// =============================================================================
// HISTORY SIDEBAR
// =============================================================================

func (m Model) sidebarView(width, height int) string {
	inner := width - 3
	lines := []string{m.theme.HeaderTitle.Render("History"), ""}

	if len(m.conversations) == 0 {
		lines = append(lines, m.theme.SidebarItem.Render("No conversations yet."))
	}

	index := 0
	for _, group := range model.GroupByDay(m.conversations, m.now()) {
		lines = append(lines, m.theme.SidebarGroup.Render(group.Label))
		for _, conv := range group.Conversations {
			lines = append(lines, m.sidebarItem(conv, index, inner))
			index++
		}
		lines = append(lines, "")
	}

	return m.theme.Sidebar.Width(width - 1).Height(height).Render(strings.Join(lines, "\n"))
}

func (m Model) sidebarItem(conv model.Conversation, index, width int) string {
	if m.focus == focusRename && index == m.cursor {
		return m.rename.View()
	}

	marker := "  "
	if conv.ID == m.activeID {
		marker = m.theme.SidebarActive.Render("* ")
	}
	title := util.PadWidth(util.TruncateWidth(conv.Title, width-2), width-2)

	style := m.theme.SidebarItem
	if m.focus != focusInput && index == m.cursor {
		style = m.theme.SidebarSelected
	}
	return marker + style.Render(title)
}
