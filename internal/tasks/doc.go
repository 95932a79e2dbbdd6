// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs fire-and-forget background jobs in submission order.
//
// The counsellor session persists messages without blocking the transcript.
// Jobs are executed one at a time on a single worker goroutine, so the
// outbound user message is always written before the reply that follows it.
// A failed job is logged and reported on the notification channel; it is
// never returned to the submitter.
//
// # Key Types
//
//   - Task: one queued job with status and timing
//   - Queue: FIFO of tasks with a single worker
//   - TaskStatus: Queued, Running, Complete, Failed
//
// # Usage
//
//	q := tasks.NewQueue(tasks.Options{Logger: log})
//	defer q.Close()
//
//	q.Submit("persist user message", func(ctx context.Context) error {
//	    _, err := adapter.Persist(ctx, model.RoleUser, text)
//	    return err
//	})
//	q.Drain() // wait for everything submitted so far
package tasks
