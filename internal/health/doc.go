// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package health probes the counsellor backend's liveness endpoint and keeps
// the shared server status current while the backend cold-starts.
//
// A Prober calls the liveness endpoint with a bounded timeout. Success marks
// the shared status ready and resets its retry counter; failure marks it
// waking, increments the counter and schedules another probe after a fixed
// delay, with no upper bound on attempts. Once three attempts have failed a
// manual retry is offered; pressing it never stops the automatic schedule.
//
// Concurrent probes collapse into one in-flight request.
package health
