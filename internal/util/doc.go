// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small string and file helpers shared by the
// counsellor packages.
//
// # Key Functions
//
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width aware truncation for tables
//   - Normalize: NFC normalisation and whitespace trimming of user text
//   - JoinSpaced: append text to a buffer, space-joined when non-empty
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateRunes(firstMessage, 53)
//	input = util.JoinSpaced(input, transcribed)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
