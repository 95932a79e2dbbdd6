// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored counsellor conversations to files.
//
// # Supported Formats
//
//   - Markdown: readable transcript with YAML front matter
//   - JSON: the conversation and its messages, actions included
//   - YAML: same document as JSON, for hand editing
//
// # Usage
//
//	doc := export.Document{Conversation: conv, Messages: msgs}
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.ExportToFile(doc, exp, opts)
package export
