// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// FORMATTING UTILITIES TESTS
// =============================================================================

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 30, 0, 0, time.Local) // a Wednesday

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"today", now.Add(-2 * time.Hour), "13:30"},
		{"this week", now.AddDate(0, 0, -2), "Mon 15:30"},
		{"older", now.AddDate(0, 0, -20), "Feb 20 15:30"},
	}
	for _, tc := range tests {
		if got := formatTimestamp(tc.t, now); got != tc.want {
			t.Errorf("%s: formatTimestamp() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCalculateContentWidth(t *testing.T) {
	tests := []struct {
		total, margin, want int
	}{
		{80, 4, 76},
		{10, 4, 6},
		{5, 4, 3},
		{0, 4, 3},
	}
	for _, tc := range tests {
		if got := calculateContentWidth(tc.total, tc.margin); got != tc.want {
			t.Errorf("calculateContentWidth(%d, %d) = %d, want %d", tc.total, tc.margin, got, tc.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	out := wrapText("the quick brown fox jumps", 10)
	for _, line := range strings.Split(out, "\n") {
		if len([]rune(line)) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if strings.ReplaceAll(out, "\n", " ") != "the quick brown fox jumps" {
		t.Errorf("wrapping lost words: %q", out)
	}

	if got := wrapText("line one\nline two", 40); got != "line one\nline two" {
		t.Errorf("existing breaks should be kept, got %q", got)
	}
	if got := wrapText("unchanged", 0); got != "unchanged" {
		t.Errorf("zero width should not wrap, got %q", got)
	}
	if got := wrapText("ééééé", 2); got != "éé\néé\né" {
		t.Errorf("wrapping should count runes, got %q", got)
	}
}

// =============================================================================
// TRANSCRIPT UTILITIES TESTS
// =============================================================================

func TestLastAssistant(t *testing.T) {
	if _, ok := lastAssistant(nil); ok {
		t.Error("empty transcript has no reply")
	}

	first := model.NewAssistantMessage("first", nil)
	second := model.NewAssistantMessage("second", nil)
	msgs := []model.Message{model.NewUserMessage("a"), first, model.NewUserMessage("b"), second, model.NewUserMessage("c")}

	got, ok := lastAssistant(msgs)
	if !ok || got.Content != "second" {
		t.Errorf("lastAssistant() = %q, %v; want second", got.Content, ok)
	}
}

func TestActionLabels(t *testing.T) {
	labels := actionLabels([]model.Action{
		{Type: model.ActionCreateTask},
		{Type: model.ActionLockUniversity},
		{Type: "custom_action"},
	})
	want := []string{"Task created", "Locked", "custom_action"}
	if strings.Join(labels, ",") != strings.Join(want, ",") {
		t.Errorf("actionLabels() = %v, want %v", labels, want)
	}
}

func TestConversationTitle(t *testing.T) {
	convs := []model.Conversation{{ID: "c1", Title: "Scholarships"}}

	if got := conversationTitle(convs, ""); got != "New conversation" {
		t.Errorf("unsaved conversation title = %q", got)
	}
	if got := conversationTitle(convs, "c1"); got != "Scholarships" {
		t.Errorf("known conversation title = %q", got)
	}
	if got := conversationTitle(convs, "c9"); got != model.DefaultTitle {
		t.Errorf("unlisted conversation title = %q", got)
	}
}
