// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// RecordingFilename is the upload name given to captured audio.
const RecordingFilename = "recording.webm"

// Transcriber turns recorded audio into text. api.Client satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Transcript is the outcome of one stopped capture.
type Transcript struct {
	Text string
	Err  error
}

// =============================================================================
// CAPTURE SESSION
// =============================================================================

// Capture owns at most one live recording.
type Capture struct {
	device Device
	stt    Transcriber
	log    *logrus.Entry

	// onResult receives every transcription outcome, from a background
	// goroutine.
	onResult func(Transcript)

	mu        sync.Mutex
	lease     Lease
	chunks    [][]byte
	collected chan struct{}
	pending   sync.WaitGroup
}

// NewCapture creates a capture session. onResult may be nil.
func NewCapture(device Device, stt Transcriber, onResult func(Transcript), log *logrus.Entry) *Capture {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	if onResult == nil {
		onResult = func(Transcript) {}
	}
	return &Capture{
		device:   device,
		stt:      stt,
		onResult: onResult,
		log:      log.WithField("component", "voice.capture"),
	}
}

// Active reports whether a recording is live.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lease != nil
}

// Toggle starts recording when idle and stops it when recording. It returns
// whether a recording is live afterwards.
func (c *Capture) Toggle(ctx context.Context) (recording bool, err error) {
	if c.Active() {
		c.Stop(ctx)
		return false, nil
	}
	if err := c.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Start acquires the device and begins accumulating audio. Starting while
// already recording is a no-op.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lease != nil {
		return nil
	}

	lease, err := c.device.Open(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to open recording device")
		return err
	}

	c.lease = lease
	c.chunks = nil
	c.collected = make(chan struct{})
	go c.collect(lease, c.collected)

	c.log.Debug("recording started")
	return nil
}

func (c *Capture) collect(lease Lease, done chan struct{}) {
	defer close(done)
	for chunk := range lease.Chunks() {
		c.mu.Lock()
		c.chunks = append(c.chunks, chunk)
		c.mu.Unlock()
	}
}

// Stop releases the device before returning. When at least one chunk was
// recorded the audio is transcribed in the background and the outcome is
// delivered to onResult. Stopping when idle is a no-op. Returns whether a
// transcription was submitted.
func (c *Capture) Stop(ctx context.Context) bool {
	c.mu.Lock()
	lease := c.lease
	collected := c.collected
	c.lease = nil
	c.mu.Unlock()

	if lease == nil {
		return false
	}

	if err := lease.Close(); err != nil {
		c.log.WithError(err).Warn("failed to release recording device")
	}
	<-collected

	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.mu.Unlock()

	if leaseErr := lease.Err(); leaseErr != nil {
		c.log.WithError(leaseErr).Warn("recording ended with error")
		c.deliver(Transcript{Err: leaseErr})
		return false
	}

	if len(chunks) == 0 {
		c.log.Debug("recording stopped with no audio")
		return false
	}

	audio := bytes.Join(chunks, nil)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		text, err := c.stt.Transcribe(ctx, audio, RecordingFilename)
		if err != nil {
			err = classify(err, ErrTranscriptionFailed)
			c.log.WithError(err).Warn("transcription failed")
		}
		c.deliver(Transcript{Text: text, Err: err})
	}()
	return true
}

func (c *Capture) deliver(t Transcript) {
	c.onResult(t)
}

// Wait blocks until in-flight transcriptions have been delivered.
func (c *Capture) Wait() {
	c.pending.Wait()
}

// Close stops any live recording without transcribing it.
func (c *Capture) Close() {
	c.mu.Lock()
	lease := c.lease
	collected := c.collected
	c.lease = nil
	c.mu.Unlock()

	if lease != nil {
		lease.Close()
		<-collected
	}
	c.pending.Wait()
}
