// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown turns assistant replies into structured block and inline
// nodes and renders them for the terminal.
//
// Parse is a pure function over goldmark's CommonMark AST. It keeps only the
// node kinds a counsellor reply uses: headings (levels 1-3), paragraphs,
// bullet and ordered lists, code blocks, and the strong, emphasis and code
// inlines.
//
// # Rendering
//
//   - Render: lipgloss styling of parsed nodes, used by the chat TUI for both
//     revealed prefixes and finished messages
//   - RenderTerminal: glamour rendering for one-shot CLI output
//
// # Usage
//
//	blocks := markdown.Parse(reply)
//	fmt.Println(markdown.Render(blocks, 80))
package markdown
