// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	task := NewTask("Test task", nil)

	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.Description != "Test task" {
		t.Errorf("Expected description 'Test task', got '%s'", task.Description)
	}
	if task.Status() != TaskStatusQueued {
		t.Errorf("Expected status Queued, got %s", task.Status())
	}
	if task.Duration() != 0 {
		t.Error("Unstarted task should have zero duration")
	}
}

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	q := NewQueue(Options{})
	defer q.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		if _, err := q.Submit("job", func(ctx context.Context) error {
			// Earlier jobs sleep longer; order must still hold.
			time.Sleep(time.Duration(20-i) * 100 * time.Microsecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	q.Drain()

	if len(order) != 20 {
		t.Fatalf("Expected 20 completed jobs, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("Job %d ran at position %d", v, i)
		}
	}
}

func TestQueue_FailureIsContained(t *testing.T) {
	q := NewQueue(Options{})
	defer q.Close()

	failing, _ := q.Submit("fails", func(ctx context.Context) error {
		return errors.New("disk full")
	})
	ran := false
	q.Submit("after", func(ctx context.Context) error {
		ran = true
		return nil
	})
	q.Drain()

	if failing.Status() != TaskStatusFailed {
		t.Errorf("Expected Failed, got %s", failing.Status())
	}
	if failing.Err() == nil || failing.Err().Error() != "disk full" {
		t.Errorf("Unexpected task error: %v", failing.Err())
	}
	if !ran {
		t.Error("Task after a failure should still run")
	}
}

func TestQueue_PanicBecomesFailure(t *testing.T) {
	q := NewQueue(Options{})
	defer q.Close()

	task, _ := q.Submit("panics", func(ctx context.Context) error {
		panic("boom")
	})
	q.Drain()

	var pe *PanicError
	if !errors.As(task.Err(), &pe) {
		t.Fatalf("Expected PanicError, got %v", task.Err())
	}
}

func TestQueue_Timeout(t *testing.T) {
	q := NewQueue(Options{TaskTimeout: 10 * time.Millisecond})
	defer q.Close()

	task, _ := q.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	q.Drain()

	if !errors.Is(task.Err(), context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", task.Err())
	}
}

func TestQueue_Full(t *testing.T) {
	q := NewQueue(Options{MaxQueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	q.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	if _, err := q.Submit("fits", nil); err != nil {
		t.Fatalf("Second submit should fit in the buffer: %v", err)
	}
	if _, err := q.Submit("overflow", nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	close(release)
	q.Close()
}

func TestQueue_CloseRunsQueuedAndRejectsNew(t *testing.T) {
	q := NewQueue(Options{})

	done := make(chan struct{})
	q.Submit("last", func(ctx context.Context) error {
		close(done)
		return nil
	})
	q.Close()

	select {
	case <-done:
	default:
		t.Error("Queued task should run before Close returns")
	}

	if _, err := q.Submit("late", nil); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}

	// Second close is a no-op.
	q.Close()
}

func TestQueue_Notifications(t *testing.T) {
	q := NewQueue(Options{})
	defer q.Close()

	q.Submit("notify me", func(ctx context.Context) error { return nil })

	select {
	case n := <-q.Notifications():
		if n.Description != "notify me" || n.Status != TaskStatusComplete {
			t.Errorf("Unexpected notification: %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No notification received")
	}

	q.Drain()
	if got := q.Summary(); got != "Pending: 0 | Completed: 1 | Failed: 0" {
		t.Errorf("Summary = %q", got)
	}
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	if TaskStatusQueued.IsTerminal() || TaskStatusRunning.IsTerminal() {
		t.Error("Queued and Running are not terminal")
	}
	if !TaskStatusComplete.IsTerminal() || !TaskStatusFailed.IsTerminal() {
		t.Error("Complete and Failed are terminal")
	}
}
