// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting to be executed
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates the task is currently executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates the task finished successfully
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates the task returned an error
	TaskStatusFailed TaskStatus = "Failed"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Func is the body of a task.
type Func func(ctx context.Context) error

// Task is one queued background job.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// Description is a human-readable description used in logs
	Description string

	status    TaskStatus
	startTime time.Time
	endTime   time.Time
	err       error

	fn Func
	mu sync.RWMutex
}

// NewTask creates a queued task.
func NewTask(description string, fn Func) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		status:      TaskStatusQueued,
		fn:          fn,
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// Status returns the current status.
func (t *Task) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the error of a failed task.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Duration returns how long the task ran, or has been running so far.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.startTime.IsZero() {
		return 0
	}
	if t.endTime.IsZero() {
		return time.Since(t.startTime)
	}
	return t.endTime.Sub(t.startTime)
}

func (t *Task) markStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = TaskStatusRunning
	t.startTime = time.Now()
}

func (t *Task) markDone(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endTime = time.Now()
	t.err = err
	if err != nil {
		t.status = TaskStatusFailed
	} else {
		t.status = TaskStatusComplete
	}
}

// run executes the task body, converting a panic into a failure.
func (t *Task) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if t.fn == nil {
		return nil
	}
	return t.fn(ctx)
}

// PanicError reports a task that panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
