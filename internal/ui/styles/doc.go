// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the counsellor TUI.

All colors are Lip Gloss AdaptiveColor values so the interface reads on both
light and dark terminals.

# Colors (colors.go)

  - Emerald - brand accent: counsellor replies, focus, the active conversation
  - Cyan - the student's own messages
  - Amber - the waking banner
  - Rose - errors and the recording indicator

Status colors are always paired with an ASCII indicator ([OK], [X], [!], [i])
so state is never conveyed by color alone.

# Theme (theme.go)

Theme groups the styles of the chat screen: header, status bar, message
labels and bodies, action badges, the waking banner, the history sidebar and
the input box. It also carries the markdown.Styles used to draw replies.

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	if theme.ShowSidebar() {
		// draw history beside the chat
	}
*/
package styles
