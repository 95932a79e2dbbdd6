// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea interface for the counsellor.

The model is a thin view over a counsellor session. Every user action runs
as a tea.Cmd against the session, and every change the session makes comes
back as an EventMsg delivered by a Forwarder:

	fwd := chat.NewForwarder()
	sess, _ := counsellor.New(counsellor.Config{..., Notify: fwd.Notify})
	m := chat.New(sess, prober, styles.NewTheme())
	p := tea.NewProgram(m, tea.WithAltScreen())
	fwd.Attach(p)
	_, err := p.Run()

# Layout

  - Header with the conversation title and voice state
  - Waking banner while the backend is unavailable, with a manual retry hint
    after repeated failures
  - Transcript viewport: markdown replies revealed progressively, action
    badges under each reply
  - Quick prompts when the transcript is empty
  - Input box and status bar
  - History sidebar (ctrl+l) grouped by day, with rename and delete

# Key Bindings

	Enter     send            ctrl+r  retry last message
	ctrl+n    new chat        ctrl+l  toggle history
	ctrl+o    record voice    ctrl+s  speak last reply
	ctrl+y    copy last reply ctrl+g  check server now
	PgUp/PgDn scroll          F1      help
	ctrl+c    quit
*/
package chat
