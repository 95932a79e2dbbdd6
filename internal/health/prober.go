// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package health

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds a single liveness call.
	DefaultTimeout = 10 * time.Second

	// DefaultInterval is the delay before re-probing after a failure.
	DefaultInterval = 5 * time.Second

	// WakingMessage is shown while the backend is unavailable.
	WakingMessage = "AI Counsellor is waking up. This may take up to 2 minutes..."
)

// Result is the outcome of one probe.
type Result int

const (
	Unavailable Result = iota
	Ready
)

// String returns the result name.
func (r Result) String() string {
	if r == Ready {
		return "ready"
	}
	return "unavailable"
}

// Checker calls the liveness endpoint. api.Client satisfies it.
type Checker interface {
	Health(ctx context.Context) error
}

// =============================================================================
// PROBER
// =============================================================================

// Config holds prober settings. Zero values take the defaults.
type Config struct {
	Timeout  time.Duration
	Interval time.Duration
	Clock    clock.Clock
	Logger   *logrus.Entry
}

// Prober tracks backend availability.
type Prober struct {
	checker  Checker
	tracker  *model.StatusTracker
	clock    clock.Clock
	timeout  time.Duration
	interval time.Duration
	log      *logrus.Entry

	group   singleflight.Group
	limiter *rate.Limiter

	readyOnce sync.Once
	ready     chan struct{}
}

// New creates a Prober that reports into tracker.
func New(checker Checker, tracker *model.StatusTracker, cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Prober{
		checker:  checker,
		tracker:  tracker,
		clock:    cfg.Clock,
		timeout:  cfg.Timeout,
		interval: cfg.Interval,
		log:      cfg.Logger.WithField("component", "health"),
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		ready:    make(chan struct{}),
	}
}

// Probe performs one liveness check and records the outcome. Callers that
// probe while another probe is in flight share its result.
func (p *Prober) Probe(ctx context.Context) Result {
	v, _, _ := p.group.Do("probe", func() (interface{}, error) {
		return p.probeOnce(ctx), nil
	})
	return v.(Result)
}

func (p *Prober) probeOnce(ctx context.Context) Result {
	ctx, cancel := p.clock.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.checker.Health(ctx); err != nil {
		status := p.tracker.MarkWaking(WakingMessage)
		p.log.WithFields(logrus.Fields{
			"retry_count": status.RetryCount,
			"error":       err.Error(),
		}).Debug("backend unavailable")
		return Unavailable
	}

	p.tracker.MarkReady()
	p.readyOnce.Do(func() {
		p.log.Info("backend ready")
		close(p.ready)
	})
	return Ready
}

// Run probes immediately, then again after every failure until the backend
// is ready or ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	for {
		if p.Probe(ctx) == Ready {
			return
		}

		timer := p.clock.Timer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.ready:
			// A manual retry succeeded in the meantime.
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CanRetryNow reports whether the manual retry affordance should be shown.
func (p *Prober) CanRetryNow() bool {
	return p.tracker.Snapshot().ShowManualRetry()
}

// RetryNow probes immediately on user request. It returns false without
// probing when presses arrive faster than once a second. The automatic
// schedule keeps running either way.
func (p *Prober) RetryNow(ctx context.Context) (Result, bool) {
	if !p.limiter.Allow() {
		return Unavailable, false
	}
	return p.Probe(ctx), true
}

// Ready is closed after the first successful probe.
func (p *Prober) Ready() <-chan struct{} {
	return p.ready
}

// IsReady reports whether any probe has succeeded.
func (p *Prober) IsReady() bool {
	select {
	case <-p.ready:
		return true
	default:
		return false
	}
}
