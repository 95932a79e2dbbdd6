// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/counsellor/internal/markdown"
)

// Theme holds the styled components of the chat screen.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER AND STATUS BAR
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderTag   lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusValue lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantBody  lipgloss.Style
	Timestamp      lipgloss.Style
	ActionBadge    lipgloss.Style
	Cursor         lipgloss.Style
	Speaking       lipgloss.Style

	// ==========================================================================
	// BANNERS AND NOTICES
	// ==========================================================================

	WakingBanner lipgloss.Style
	Notice       lipgloss.Style
	Recording    lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarGroup    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarActive   lipgloss.Style

	// ==========================================================================
	// INPUT AND EMPTY STATE
	// ==========================================================================

	InputContainer lipgloss.Style
	InputFocused   lipgloss.Style
	Welcome        lipgloss.Style
	WelcomeTitle   lipgloss.Style
	QuickPrompt    lipgloss.Style
	QuickSelected  lipgloss.Style
	Help           lipgloss.Style

	// Markdown is the style set used for counsellor replies.
	Markdown markdown.Styles
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)
	t.HeaderTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)
	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)
	t.UserBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)
	t.AssistantBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderTop(false).
		BorderRight(false).
		BorderBottom(false).
		BorderForeground(Emerald).
		PaddingLeft(1)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.ActionBadge = lipgloss.NewStyle().
		Foreground(EmeraldDeep).
		Background(Surface).
		Padding(0, 1)
	t.Cursor = lipgloss.NewStyle().
		Foreground(Emerald).
		Blink(true)
	t.Speaking = lipgloss.NewStyle().
		Foreground(Emerald).
		Italic(true)

	t.WakingBanner = lipgloss.NewStyle().
		Foreground(Amber).
		Background(AmberDeep).
		Padding(0, 1)
	t.Notice = lipgloss.NewStyle().
		Foreground(Rose)
	t.Recording = lipgloss.NewStyle().
		Bold(true).
		Foreground(Rose)

	t.Sidebar = lipgloss.NewStyle().
		Background(Surface).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderTop(false).
		BorderLeft(false).
		BorderBottom(false).
		BorderForeground(Border).
		Padding(0, 1)
	t.SidebarGroup = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextMuted)
	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.SidebarSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(Border).
		Bold(true)
	t.SidebarActive = lipgloss.NewStyle().
		Foreground(Emerald)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
	t.InputFocused = t.InputContainer.
		BorderForeground(Emerald)
	t.Welcome = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(1, 2)
	t.WelcomeTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)
	t.QuickPrompt = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
	t.QuickSelected = t.QuickPrompt.
		Foreground(TextPrimary).
		BorderForeground(Emerald)
	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Markdown = markdown.DefaultStyles()
	t.Markdown.Heading[0] = t.Markdown.Heading[0].Foreground(Emerald)
	t.Markdown.Heading[1] = t.Markdown.Heading[1].Foreground(Emerald)
	t.Markdown.Highlight = t.ColorProfile != termenv.Ascii
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// ShowSidebar reports whether the history sidebar fits beside the chat.
func (t *Theme) ShowSidebar() bool {
	return t.GetLayoutMode() == LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)

// String names the layout mode.
func (m LayoutMode) String() string {
	switch m {
	case LayoutNarrow:
		return "narrow"
	case LayoutMedium:
		return "medium"
	default:
		return "wide"
	}
}
