// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for counsellor conversations.
//
// # Key Types
//
//   - Conversation: persisted, titled container of messages
//   - Message: one user or assistant turn, optionally carrying Actions
//   - Action: a side effect the assistant performed (task created, ...)
//   - Transcript: the in-memory, creation-ordered message list of a session
//   - StatusTracker: the shared ServerStatus record (unknown/waking/ready)
//
// # Usage
//
//	t := model.NewTranscript()
//	msg := t.Append(model.NewUserMessage("Recommend universities"))
//	last := t.LastUser()
//
//	status := model.NewStatusTracker()
//	status.MarkWaking("Server is starting up...")
//	if status.Snapshot().ShowManualRetry() { ... }
package model
