// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTick is the per-character reveal interval.
const DefaultTick = 15 * time.Millisecond

// ErrRunActive is returned by Start while a reveal is still in progress.
var ErrRunActive = errors.New("reveal already in progress")

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the ticks.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithTick sets the per-character interval. Non-positive values are ignored.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// Scheduler drives a single reveal run at a time.
type Scheduler struct {
	clock clock.Clock
	tick  time.Duration

	mu  sync.Mutex
	run *run
}

// run is one in-progress reveal.
type run struct {
	ticker *clock.Ticker
	stop   chan struct{}

	// emitMu serializes callbacks against Cancel so no emission happens
	// after Cancel returns.
	emitMu    sync.Mutex
	cancelled bool
}

// New creates a Scheduler using the wall clock and DefaultTick.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock: clock.New(),
		tick:  DefaultTick,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick returns the per-character interval.
func (s *Scheduler) Tick() time.Duration {
	return s.tick
}

// Start begins revealing text. onReveal receives strictly longer prefixes,
// the last one equal to text. onComplete fires exactly once after the last
// prefix; the scheduler is idle again by the time it runs, so onComplete may
// start the next reveal. Either callback may be nil.
//
// Start returns ErrRunActive without disturbing the current run when one is
// in progress. Callbacks must not call Cancel.
func (s *Scheduler) Start(text string, onReveal func(prefix string), onComplete func()) error {
	s.mu.Lock()
	if s.run != nil {
		s.mu.Unlock()
		return ErrRunActive
	}
	r := &run{
		ticker: s.clock.Ticker(s.tick),
		stop:   make(chan struct{}),
	}
	s.run = r
	s.mu.Unlock()

	go s.loop(r, []rune(text), onReveal, onComplete)
	return nil
}

func (s *Scheduler) loop(r *run, runes []rune, onReveal func(string), onComplete func()) {
	defer r.ticker.Stop()

	shown := 0
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C:
		}

		r.emitMu.Lock()
		if r.cancelled {
			r.emitMu.Unlock()
			return
		}

		if shown < len(runes) {
			shown++
			if onReveal != nil {
				onReveal(string(runes[:shown]))
			}
		}

		if shown >= len(runes) {
			s.finish(r)
			r.emitMu.Unlock()
			if onComplete != nil {
				onComplete()
			}
			return
		}
		r.emitMu.Unlock()
	}
}

// finish clears r as the active run if it still is.
func (s *Scheduler) finish(r *run) {
	s.mu.Lock()
	if s.run == r {
		s.run = nil
	}
	s.mu.Unlock()
}

// Cancel stops the active run without firing its completion callback.
// It is a no-op when nothing is running.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()

	if r == nil {
		return
	}

	r.emitMu.Lock()
	r.cancelled = true
	r.emitMu.Unlock()
	close(r.stop)
}

// Active reports whether a reveal is in progress.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}
