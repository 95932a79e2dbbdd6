// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/jeranaias/counsellor/internal/ui/styles"
)

// init matches lipgloss and fatih/color to the terminal.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
	color.NoColor = !ColorsEnabled()
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Emerald)

	// SectionStyle is used for group headers such as "Today"
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.TextPrimary).
			MarginTop(1)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(14)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// UserStyle labels the user's turns in the plain chat
	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Cyan)

	// AssistantStyle labels the counsellor's turns in the plain chat
	AssistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Emerald)

	// PromptStyle is the plain chat prompt
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)
)

// =============================================================================
// STATUS MARKS
// =============================================================================

func okMark() string   { return color.GreenString("✓") }
func failMark() string { return color.RedString("✗") }
func warnMark() string { return color.YellowString("!") }

// RenderSeparator returns a horizontal rule of the given width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 40
	}
	return DimStyle.Render(strings.Repeat("─", width))
}

// RenderLabel renders a field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}
