// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sync"

// ManualRetryThreshold is the number of consecutive failures after which a
// manual "retry now" affordance is offered.
const ManualRetryThreshold = 3

// ServerState is the readiness of the counsellor backend as seen locally.
type ServerState int

const (
	// ServerUnknown means no probe has completed yet.
	ServerUnknown ServerState = iota
	// ServerWaking means a probe failed or a send hit a cold start.
	ServerWaking
	// ServerReady means the last probe or send succeeded.
	ServerReady
)

// String returns the lowercase state name.
func (s ServerState) String() string {
	switch s {
	case ServerWaking:
		return "waking"
	case ServerReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ServerStatus is a snapshot of backend readiness. It is process-local and
// never persisted.
type ServerStatus struct {
	State      ServerState
	Waking     bool
	RetryCount int
	Message    string
}

// ShowManualRetry reports whether the manual retry affordance should be shown.
func (s ServerStatus) ShowManualRetry() bool {
	return s.Waking && s.RetryCount >= ManualRetryThreshold
}

// =============================================================================
// STATUS TRACKER
// =============================================================================

// StatusTracker owns the single ServerStatus record shared by the prober and
// the send pipeline. Updates merge into the record: success always resets
// the retry counter, failure always increments it.
type StatusTracker struct {
	mu        sync.Mutex
	status    ServerStatus
	listeners []func(ServerStatus)
}

// NewStatusTracker creates a tracker in the unknown state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// Snapshot returns the current status.
func (t *StatusTracker) Snapshot() ServerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Subscribe registers fn to be called with every new status. Listeners run
// outside the tracker lock.
func (t *StatusTracker) Subscribe(fn func(ServerStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// MarkReady records a successful probe or send.
func (t *StatusTracker) MarkReady() ServerStatus {
	return t.update(func(s *ServerStatus) {
		s.State = ServerReady
		s.Waking = false
		s.RetryCount = 0
		s.Message = ""
	})
}

// MarkWaking records a failed probe or a cold-start send outcome.
func (t *StatusTracker) MarkWaking(message string) ServerStatus {
	return t.update(func(s *ServerStatus) {
		s.State = ServerWaking
		s.Waking = true
		s.RetryCount++
		s.Message = message
	})
}

// ClearMessage drops the human-readable status text, keeping the counter.
func (t *StatusTracker) ClearMessage() ServerStatus {
	return t.update(func(s *ServerStatus) {
		s.Message = ""
	})
}

func (t *StatusTracker) update(fn func(*ServerStatus)) ServerStatus {
	t.mu.Lock()
	fn(&t.status)
	snapshot := t.status
	listeners := make([]func(ServerStatus), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return snapshot
}
