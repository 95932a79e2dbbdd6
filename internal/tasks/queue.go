// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrQueueFull is returned when MaxQueueSize tasks are already waiting.
	ErrQueueFull = errors.New("task queue is full")
)

// =============================================================================
// TASK QUEUE
// =============================================================================

// Options configures a Queue.
type Options struct {
	// MaxQueueSize bounds waiting tasks (default: 256)
	MaxQueueSize int

	// TaskTimeout bounds each task (default: 30s, negative = none)
	TaskTimeout time.Duration

	// Logger receives task failures (default: discarded)
	Logger *logrus.Entry
}

// TaskNotification reports a task reaching a terminal state.
type TaskNotification struct {
	TaskID      string
	Description string
	Status      TaskStatus
	Error       string
	Duration    time.Duration
}

// Queue executes submitted tasks one at a time, in submission order.
type Queue struct {
	tasks   chan *Task
	timeout time.Duration
	log     *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed against concurrent Submit and Close.
	mu     sync.RWMutex
	closed bool

	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond

	completed atomic.Int64
	failed    atomic.Int64

	notifyChan chan TaskNotification
	workerDone chan struct{}
}

// NewQueue creates a queue and starts its worker.
func NewQueue(opts Options) *Queue {
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 256
	}
	if opts.TaskTimeout == 0 {
		opts.TaskTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = logrus.NewEntry(l)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:      make(chan *Task, opts.MaxQueueSize),
		timeout:    opts.TaskTimeout,
		log:        opts.Logger.WithField("component", "tasks"),
		ctx:        ctx,
		cancel:     cancel,
		notifyChan: make(chan TaskNotification, 100),
		workerDone: make(chan struct{}),
	}
	q.idle = sync.NewCond(&q.pendingMu)

	go q.worker()
	return q
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit queues fn. It never blocks: a full queue returns ErrQueueFull.
func (q *Queue) Submit(description string, fn Func) (*Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	task := NewTask(description, fn)
	q.addPending(1)

	select {
	case q.tasks <- task:
		return task, nil
	default:
		q.addPending(-1)
		q.log.WithField("task", description).Warn("task queue full, dropping task")
		return nil, fmt.Errorf("%w: %d waiting", ErrQueueFull, cap(q.tasks))
	}
}

// Drain blocks until every task submitted so far has finished.
func (q *Queue) Drain() {
	q.pendingMu.Lock()
	for q.pending > 0 {
		q.idle.Wait()
	}
	q.pendingMu.Unlock()
}

// Close stops accepting tasks, runs the ones already queued, and waits for
// the worker to exit. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	<-q.workerDone
	q.cancel()
}

// Pending returns the number of tasks queued or running.
func (q *Queue) Pending() int {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	return q.pending
}

func (q *Queue) addPending(delta int) {
	q.pendingMu.Lock()
	q.pending += delta
	if q.pending == 0 {
		q.idle.Broadcast()
	}
	q.pendingMu.Unlock()
}

// =============================================================================
// WORKER
// =============================================================================

func (q *Queue) worker() {
	defer close(q.workerDone)

	for task := range q.tasks {
		q.execute(task)
		q.addPending(-1)
	}
}

func (q *Queue) execute(task *Task) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	task.markStarted()
	err := task.run(ctx)
	task.markDone(err)

	n := TaskNotification{
		TaskID:      task.ID,
		Description: task.Description,
		Status:      task.Status(),
		Duration:    task.Duration(),
	}
	if err != nil {
		q.failed.Add(1)
		n.Error = err.Error()
		q.log.WithFields(logrus.Fields{
			"task":     task.Description,
			"duration": n.Duration.String(),
		}).WithError(err).Warn("background task failed")
	} else {
		q.completed.Add(1)
	}
	q.notify(n)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Notifications returns the channel of terminal task states.
func (q *Queue) Notifications() <-chan TaskNotification {
	return q.notifyChan
}

func (q *Queue) notify(n TaskNotification) {
	select {
	case q.notifyChan <- n:
	default:
		// Nobody is listening; notifications are advisory.
	}
}

// Summary returns a formatted summary of the queue.
func (q *Queue) Summary() string {
	return fmt.Sprintf("Pending: %d | Completed: %d | Failed: %d",
		q.Pending(), q.completed.Load(), q.failed.Load())
}
