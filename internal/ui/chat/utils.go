// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/jeranaias/counsellor/internal/model"
)

// QuickPrompts are offered while the transcript is empty.
var QuickPrompts = []string{
	"Recommend universities for my profile",
	"What are my chances at top schools?",
	"Help me build my shortlist",
	"What should I work on to improve my profile?",
}

// =============================================================================
// FORMATTING UTILITIES
// =============================================================================

// formatTimestamp formats a message time relative to now:
//   - Today: just time (e.g., "15:04")
//   - This week: day and time (e.g., "Mon 15:04")
//   - Older: date and time (e.g., "Jan 2 15:04")
func formatTimestamp(t, now time.Time) string {
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if now.Sub(t) < 7*24*time.Hour {
		return t.Format("Mon 15:04")
	}
	return t.Format("Jan 2 15:04")
}

// calculateContentWidth returns the width left for message text after the
// given margin, never less than 3.
func calculateContentWidth(totalWidth, margin int) int {
	contentWidth := totalWidth - margin
	if contentWidth < 3 {
		contentWidth = 3
	}
	return contentWidth
}

// wrapText wraps text to maxWidth runes, preserving existing line breaks and
// breaking long lines at spaces where possible.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}

		runes := []rune(line)
		for len(runes) > maxWidth {
			breakPoint := maxWidth
			for j := maxWidth; j > 0; j-- {
				if runes[j] == ' ' {
					breakPoint = j
					break
				}
			}
			result.WriteString(string(runes[:breakPoint]))
			result.WriteString("\n")
			runes = []rune(strings.TrimLeft(string(runes[breakPoint:]), " "))
		}
		result.WriteString(string(runes))
	}
	return result.String()
}

// =============================================================================
// TRANSCRIPT UTILITIES
// =============================================================================

// lastAssistant returns the most recent counsellor reply.
func lastAssistant(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}

// actionLabels returns the badge text for each action in order.
func actionLabels(actions []model.Action) []string {
	labels := make([]string, 0, len(actions))
	for _, a := range actions {
		labels = append(labels, a.Label())
	}
	return labels
}

// conversationTitle looks up the title of id, or a placeholder for a
// conversation that has not been stored yet.
func conversationTitle(convs []model.Conversation, id string) string {
	if id == "" {
		return "New conversation"
	}
	for _, c := range convs {
		if c.ID == id {
			return c.Title
		}
	}
	return model.DefaultTitle
}
