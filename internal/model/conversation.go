// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"time"

	"github.com/jeranaias/counsellor/internal/util"
)

// TitleLength is the number of leading characters of the first user message
// kept in a conversation title.
const TitleLength = 50

// DefaultTitle is used when no usable first message exists.
const DefaultTitle = "New conversation"

// Conversation is a titled, timestamped container for an ordered sequence of
// messages. It exists only once its first message has been persisted.
type Conversation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// DeriveTitle builds a conversation title from the first user message: the
// first 50 characters, with "..." appended when the message is longer.
func DeriveTitle(firstMessage string) string {
	text := util.FoldLines(util.Normalize(firstMessage))
	if text == "" {
		return DefaultTitle
	}
	runes := []rune(text)
	if len(runes) > TitleLength {
		return string(runes[:TitleLength]) + "..."
	}
	return text
}

// RelativeDay groups a timestamp for history listings: "Today",
// "Yesterday", "N days ago" within a week, otherwise the calendar date.
func RelativeDay(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return strconv.Itoa(days) + " days ago"
	default:
		return t.Local().Format("2006-01-02")
	}
}

// GroupByDay splits conversations (already ordered most recent first) into
// consecutive RelativeDay groups, preserving order.
func GroupByDay(convs []Conversation, now time.Time) []ConversationGroup {
	var groups []ConversationGroup
	for _, c := range convs {
		label := RelativeDay(c.LastMessageAt, now)
		if n := len(groups); n > 0 && groups[n-1].Label == label {
			groups[n-1].Conversations = append(groups[n-1].Conversations, c)
			continue
		}
		groups = append(groups, ConversationGroup{Label: label, Conversations: []Conversation{c}})
	}
	return groups
}

// ConversationGroup is a run of conversations sharing a RelativeDay label.
type ConversationGroup struct {
	Label         string
	Conversations []Conversation
}
