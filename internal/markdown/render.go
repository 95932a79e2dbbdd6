// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// STYLES
// =============================================================================

// Styles controls how Render draws each node kind.
type Styles struct {
	Heading  [3]lipgloss.Style
	Strong   lipgloss.Style
	Emphasis lipgloss.Style
	Code     lipgloss.Style
	CodeBox  lipgloss.Style
	Bullet   lipgloss.Style

	// Highlight colours fenced code that names its language.
	Highlight bool
}

// DefaultStyles returns the styles used by the chat view.
func DefaultStyles() Styles {
	accent := lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#A78BFA"}
	muted := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	codeFg := lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}

	return Styles{
		Heading: [3]lipgloss.Style{
			lipgloss.NewStyle().Bold(true).Underline(true).Foreground(accent),
			lipgloss.NewStyle().Bold(true).Foreground(accent),
			lipgloss.NewStyle().Bold(true),
		},
		Strong:   lipgloss.NewStyle().Bold(true),
		Emphasis: lipgloss.NewStyle().Italic(true),
		Code:     lipgloss.NewStyle().Foreground(codeFg),
		CodeBox:  lipgloss.NewStyle().Foreground(codeFg).PaddingLeft(2),
		Bullet:   lipgloss.NewStyle().Foreground(muted),
	}
}

// =============================================================================
// LIPGLOSS RENDERING
// =============================================================================

// Render draws blocks with DefaultStyles, wrapped to width columns.
func Render(blocks []Block, width int) string {
	return RenderWith(DefaultStyles(), blocks, width)
}

// RenderWith draws blocks with the given styles. Blocks are separated by a
// blank line.
func RenderWith(st Styles, blocks []Block, width int) string {
	if width < 10 {
		width = 10
	}

	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case BlockHeading:
			h := st.Heading[clampLevel(b.Level)-1]
			parts = append(parts, h.Width(width).Render(PlainText(b.Inlines)))

		case BlockParagraph:
			parts = append(parts, wrap(renderInlines(st, b.Inlines), width))

		case BlockBulletList, BlockOrderedList:
			parts = append(parts, renderList(st, b, width))

		case BlockCode:
			if st.Highlight && b.Language != "" {
				parts = append(parts, st.CodeBox.UnsetForeground().Render(Highlight(b.Code, b.Language)))
				continue
			}
			parts = append(parts, st.CodeBox.Render(b.Code))
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderList(st Styles, b Block, width int) string {
	lines := make([]string, 0, len(b.Items))
	for i, item := range b.Items {
		marker := "• "
		if b.Kind == BlockOrderedList {
			marker = strconv.Itoa(b.Start+i) + ". "
		}
		body := wrap(renderInlines(st, item), width-lipgloss.Width(marker))
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, st.Bullet.Render(marker), body))
	}
	return strings.Join(lines, "\n")
}

func renderInlines(st Styles, runs []Inline) string {
	var sb strings.Builder
	for _, r := range runs {
		switch r.Kind {
		case InlineStrong:
			sb.WriteString(st.Strong.Render(r.Text))
		case InlineEmphasis:
			sb.WriteString(st.Emphasis.Render(r.Text))
		case InlineCode:
			sb.WriteString(st.Code.Render(r.Text))
		default:
			sb.WriteString(r.Text)
		}
	}
	return sb.String()
}

func wrap(s string, width int) string {
	if width < 1 {
		width = 1
	}
	return lipgloss.NewStyle().Width(width).Render(s)
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 3 {
		return 3
	}
	return level
}

// =============================================================================
// GLAMOUR RENDERING
// =============================================================================

// noTTYStyle is glamour's colourless style.
const noTTYStyle = "notty"

var (
	renderersMu sync.Mutex
	renderers   = map[int]*glamour.TermRenderer{}
)

// RenderTerminal renders markdown with glamour for one-shot output. When
// NO_COLOR is set or color is disabled the plain notty style is used.
// Returns the original text if rendering fails.
func RenderTerminal(source string, width int) string {
	r, err := terminalRenderer(width)
	if err != nil {
		return source
	}
	out, err := r.Render(source)
	if err != nil {
		return source
	}
	return out
}

func terminalRenderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}

	renderersMu.Lock()
	defer renderersMu.Unlock()

	if r, ok := renderers[width]; ok {
		return r, nil
	}

	styleOpt := glamour.WithAutoStyle()
	if termenv.EnvNoColor() || termenv.EnvColorProfile() == termenv.Ascii {
		styleOpt = glamour.WithStandardStyle(noTTYStyle)
	}

	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	renderers[width] = r
	return r, nil
}
