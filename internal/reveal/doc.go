// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reveal discloses an already-received reply one character at a
// time on a fixed tick.
//
// A Scheduler runs at most one reveal at a time. Each tick emits the next
// longer rune prefix of the text; after the full text has been emitted the
// completion callback fires exactly once. The clock is injectable so tests
// step a mock clock instead of sleeping.
//
// # Usage
//
//	s := reveal.New()
//	err := s.Start(reply, func(prefix string) {
//		program.Send(revealMsg(prefix))
//	}, func() {
//		program.Send(revealDoneMsg{})
//	})
package reveal
