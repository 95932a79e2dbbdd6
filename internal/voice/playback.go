// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/counsellor/internal/api"
)

// Synthesizer requests spoken audio for text. api.Client satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*api.Audio, error)
}

// Player starts audio output.
type Player interface {
	Play(ctx context.Context, audio *api.Audio) (Stream, error)
}

// Stream is one playing audio output.
type Stream interface {
	// Done is closed when playback ends, naturally or by Stop.
	Done() <-chan struct{}

	// Stop ends playback and releases its resources. It is idempotent and
	// returns once they are released.
	Stop()
}

// =============================================================================
// PLAYBACK SESSION
// =============================================================================

// Playback owns at most one audio output, keyed by the message it narrates.
type Playback struct {
	tts    Synthesizer
	player Player
	log    *logrus.Entry

	// onEnd is called with the message key when its playback ends for any
	// reason other than Speak or StopAll replacing it.
	onEnd func(key string)

	mu     sync.Mutex
	key    string
	stream Stream
	cancel context.CancelFunc
	gen    uint64
}

// NewPlayback creates a playback session. onEnd may be nil.
func NewPlayback(tts Synthesizer, player Player, onEnd func(key string), log *logrus.Entry) *Playback {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	if onEnd == nil {
		onEnd = func(string) {}
	}
	return &Playback{
		tts:    tts,
		player: player,
		onEnd:  onEnd,
		log:    log.WithField("component", "voice.playback"),
	}
}

// Active returns the key of the message being narrated, or "".
func (p *Playback) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

// Speak narrates text for the message identified by key. If key is already
// playing it is stopped instead and Speak returns false. Any other playback
// is stopped first. Speak blocks while audio is synthesized and returns true
// once playback has started.
func (p *Playback) Speak(ctx context.Context, key, text string) (bool, error) {
	p.mu.Lock()
	if p.key == key && key != "" {
		p.stopLocked()
		p.mu.Unlock()
		return false, nil
	}
	p.stopLocked()

	p.gen++
	gen := p.gen
	sctx, cancel := context.WithCancel(ctx)
	p.key = key
	p.cancel = cancel
	p.mu.Unlock()

	audio, err := p.tts.Synthesize(sctx, text)

	p.mu.Lock()
	if p.gen != gen {
		// Stopped or replaced while synthesizing.
		p.mu.Unlock()
		cancel()
		return false, nil
	}
	if err != nil {
		p.clearLocked()
		p.mu.Unlock()
		err = classify(err, ErrSynthesisFailed)
		p.log.WithError(err).WithField("message", key).Warn("speech synthesis failed")
		return false, err
	}

	stream, err := p.player.Play(sctx, audio)
	if err != nil {
		p.clearLocked()
		p.mu.Unlock()
		p.log.WithError(err).WithField("message", key).Warn("audio playback failed")
		return false, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	p.stream = stream
	p.mu.Unlock()

	go p.watch(gen, key, stream)
	return true, nil
}

// watch releases the session when the stream ends on its own.
func (p *Playback) watch(gen uint64, key string, stream Stream) {
	<-stream.Done()

	p.mu.Lock()
	current := p.gen == gen
	if current {
		p.clearLocked()
	}
	p.mu.Unlock()

	if current {
		p.onEnd(key)
	}
}

// StopAll stops any playback.
func (p *Playback) StopAll() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

// stopLocked tears down the current session, if any.
func (p *Playback) stopLocked() {
	if p.key == "" && p.stream == nil && p.cancel == nil {
		return
	}
	p.gen++
	stream := p.stream
	p.clearLocked()
	if stream != nil {
		stream.Stop()
	}
}

func (p *Playback) clearLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	p.key = ""
	p.stream = nil
	p.cancel = nil
}
