// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Headings(t *testing.T) {
	blocks := Parse("# Top\n\n## Second\n\n#### Deep")
	require.Len(t, blocks, 3)

	assert.Equal(t, BlockHeading, blocks[0].Kind)
	assert.Equal(t, 1, blocks[0].Level)
	assert.Equal(t, "Top", PlainText(blocks[0].Inlines))
	assert.Equal(t, 2, blocks[1].Level)
	assert.Equal(t, 3, blocks[2].Level, "levels beyond 3 are clamped")
}

func TestParse_Inlines(t *testing.T) {
	blocks := Parse("Apply to **MIT** and *Stanford* using `CommonApp`.")
	require.Len(t, blocks, 1)
	require.Equal(t, BlockParagraph, blocks[0].Kind)

	assert.Equal(t, []Inline{
		{Kind: InlineText, Text: "Apply to "},
		{Kind: InlineStrong, Text: "MIT"},
		{Kind: InlineText, Text: " and "},
		{Kind: InlineEmphasis, Text: "Stanford"},
		{Kind: InlineText, Text: " using "},
		{Kind: InlineCode, Text: "CommonApp"},
		{Kind: InlineText, Text: "."},
	}, blocks[0].Inlines)
}

func TestParse_Lists(t *testing.T) {
	src := "Options:\n\n- First\n- **Second**\n\n3. three\n4. four\n"
	blocks := Parse(src)
	require.Len(t, blocks, 3)

	bullets := blocks[1]
	assert.Equal(t, BlockBulletList, bullets.Kind)
	require.Len(t, bullets.Items, 2)
	assert.Equal(t, "First", PlainText(bullets.Items[0]))
	assert.Equal(t, InlineStrong, bullets.Items[1][0].Kind)

	ordered := blocks[2]
	assert.Equal(t, BlockOrderedList, ordered.Kind)
	assert.Equal(t, 3, ordered.Start)
	assert.Len(t, ordered.Items, 2)
}

func TestParse_NestedListFlattened(t *testing.T) {
	blocks := Parse("- outer\n  - inner\n- last\n")
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Items, 3)
	assert.Equal(t, "outer", PlainText(blocks[0].Items[0]))
	assert.Equal(t, "inner", PlainText(blocks[0].Items[1]))
	assert.Equal(t, "last", PlainText(blocks[0].Items[2]))
}

func TestParse_CodeBlock(t *testing.T) {
	blocks := Parse("```go\nfmt.Println(1)\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockCode, blocks[0].Kind)
	assert.Equal(t, "go", blocks[0].Language)
	assert.Equal(t, "fmt.Println(1)", blocks[0].Code)
}

func TestParse_SoftBreakJoinsLines(t *testing.T) {
	blocks := Parse("line one\nline two")
	require.Len(t, blocks, 1)
	assert.Equal(t, "line one line two", PlainText(blocks[0].Inlines))
}

func TestParse_PartialPrefix(t *testing.T) {
	// A reveal prefix may cut an emphasis marker in half.
	blocks := Parse("Consider **MI")
	require.Len(t, blocks, 1)
	text := PlainText(blocks[0].Inlines)
	assert.True(t, strings.HasPrefix(text, "Consider"))
	assert.True(t, strings.HasSuffix(text, "MI"))
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("   \n\n"))
}

func TestRender_ContainsContent(t *testing.T) {
	out := Render(Parse("## Plan\n\nStart **early**.\n\n- Essays\n- Tests\n\n1. Apply"), 40)

	assert.Contains(t, out, "Plan")
	assert.Contains(t, out, "early")
	assert.Contains(t, out, "• ")
	assert.Contains(t, out, "Essays")
	assert.Contains(t, out, "1. ")
	assert.Contains(t, out, "Apply")
}

func TestRender_Wraps(t *testing.T) {
	long := strings.Repeat("word ", 30)
	out := Render(Parse(long), 20)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len([]rune(stripANSI(line))), 20)
	}
}

func TestRenderTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := RenderTerminal("# Hello\n\nWorld", 60)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "World")
}

func stripANSI(s string) string {
	var sb strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && ((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')):
			inEsc = false
		case !inEsc:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func TestHighlight(t *testing.T) {
	code := "def score(gpa):\n    return gpa * 25"

	out := Highlight(code, "python")
	assert.Contains(t, out, "\x1b[", "known language is coloured")
	assert.Equal(t, code, stripANSI(out))

	assert.Equal(t, code, Highlight(code, ""), "no language, no colour")
	assert.Equal(t, code, Highlight(code, "no-such-language"))
}

func TestRenderWith_HighlightsFencedCode(t *testing.T) {
	src := "Try this:\n\n```python\nprint('hi')\n```"

	st := DefaultStyles()
	plain := RenderWith(st, Parse(src), 60)
	st.Highlight = true
	coloured := RenderWith(st, Parse(src), 60)

	assert.Contains(t, stripANSI(coloured), "print('hi')")
	assert.NotEqual(t, plain, coloured)
}
