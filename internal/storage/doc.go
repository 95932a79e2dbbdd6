// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists counsellor conversations and their messages.
//
// Service is the persistence collaborator: conversation create, last-activity
// update, message insert, and the ordered list and delete queries.
// SQLiteService implements it on a local SQLite database.
//
// Adapter sits between the chat session and a Service. It holds the active
// conversation id in memory and creates the conversation lazily when the
// first message of a session is persisted. Persistence failures are logged
// and reported as a missing id, never as a fatal error: the in-memory
// transcript stays authoritative for the current session.
//
// # Usage
//
//	svc, err := storage.OpenSQLite(cfg.Storage.Path)
//	adapter := storage.NewAdapter(svc, cfg.User.ID, log)
//	res, err := adapter.Persist(ctx, model.RoleUser, text, nil)
//
// # Storage Location
//
// The database defaults to ~/.counsellor/counsellor.db.
package storage
