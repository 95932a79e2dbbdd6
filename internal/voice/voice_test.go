// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/counsellor/internal/api"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeLease struct {
	chunks chan []byte
	closed chan struct{}
	once   sync.Once
	err    error
}

func newFakeLease(chunks ...[]byte) *fakeLease {
	l := &fakeLease{chunks: make(chan []byte, len(chunks)+1), closed: make(chan struct{})}
	for _, c := range chunks {
		l.chunks <- c
	}
	return l
}

func (l *fakeLease) Chunks() <-chan []byte { return l.chunks }
func (l *fakeLease) Err() error            { return l.err }
func (l *fakeLease) Close() error {
	l.once.Do(func() {
		close(l.chunks)
		close(l.closed)
	})
	return nil
}

func (l *fakeLease) released() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

type fakeDevice struct {
	lease *fakeLease
	err   error
	opens int
}

func (d *fakeDevice) Open(ctx context.Context) (Lease, error) {
	d.opens++
	if d.err != nil {
		return nil, d.err
	}
	return d.lease, nil
}

type fakeSTT struct {
	mu    sync.Mutex
	calls int
	audio []byte
	text  string
	err   error
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.audio = audio
	return f.text, f.err
}

func (f *fakeSTT) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStream struct {
	done chan struct{}
	once sync.Once
}

func newFakeStream() *fakeStream { return &fakeStream{done: make(chan struct{})} }

func (s *fakeStream) Done() <-chan struct{} { return s.done }
func (s *fakeStream) Stop()                 { s.once.Do(func() { close(s.done) }) }

func (s *fakeStream) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type fakePlayer struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (p *fakePlayer) Play(ctx context.Context, audio *api.Audio) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := newFakeStream()
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *fakePlayer) stream(i int) *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[i]
}

type fakeTTS struct {
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) (*api.Audio, error) {
	f.calls++
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &api.Audio{Data: []byte(text), ContentType: "audio/mpeg"}, nil
}

// =============================================================================
// CAPTURE TESTS
// =============================================================================

func collectResults() (func(Transcript), chan Transcript) {
	ch := make(chan Transcript, 4)
	return func(t Transcript) { ch <- t }, ch
}

func TestCapture_ToggleRecordsAndTranscribes(t *testing.T) {
	lease := newFakeLease([]byte("ab"), []byte("cd"))
	device := &fakeDevice{lease: lease}
	stt := &fakeSTT{text: "hello"}
	onResult, results := collectResults()
	c := NewCapture(device, stt, onResult, nil)

	recording, err := c.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, recording)
	assert.True(t, c.Active())

	recording, err = c.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, recording)
	assert.True(t, lease.released(), "device released before Stop returns")

	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Equal(t, "hello", r.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no transcription result")
	}
	assert.Equal(t, []byte("abcd"), stt.audio)
}

func TestCapture_StopIsIdempotent(t *testing.T) {
	c := NewCapture(&fakeDevice{lease: newFakeLease([]byte("x"))}, &fakeSTT{}, nil, nil)
	require.NoError(t, c.Start(context.Background()))

	c.Stop(context.Background())
	assert.False(t, c.Stop(context.Background()))
	c.Wait()
}

func TestCapture_NoChunksSkipsTranscription(t *testing.T) {
	stt := &fakeSTT{}
	c := NewCapture(&fakeDevice{lease: newFakeLease()}, stt, nil, nil)

	require.NoError(t, c.Start(context.Background()))
	assert.False(t, c.Stop(context.Background()))
	c.Wait()
	assert.Zero(t, stt.callCount())
}

func TestCapture_PermissionDenied(t *testing.T) {
	c := NewCapture(&fakeDevice{err: ErrPermissionDenied}, &fakeSTT{}, nil, nil)

	recording, err := c.Toggle(context.Background())
	assert.False(t, recording)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, c.Active())
}

func TestCapture_DistinctFailures(t *testing.T) {
	tests := []struct {
		name   string
		sttErr error
		want   error
	}{
		{"not signed in", api.ErrNotSignedIn, api.ErrNotSignedIn},
		{"no api key", &api.ClientError{Type: api.ErrTypeNotConfigured, Message: "x"}, ErrNotConfigured},
		{"other", errors.New("boom"), ErrTranscriptionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			onResult, results := collectResults()
			c := NewCapture(&fakeDevice{lease: newFakeLease([]byte("x"))}, &fakeSTT{err: tc.sttErr}, onResult, nil)
			require.NoError(t, c.Start(context.Background()))
			c.Stop(context.Background())

			r := <-results
			assert.ErrorIs(t, r.Err, tc.want)
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Contains(t, Message(ErrPermissionDenied), "Microphone access denied")
	assert.Contains(t, Message(api.ErrNotSignedIn), "log in")
	assert.Contains(t, Message(ErrNotConfigured), "not configured")
	assert.Contains(t, Message(ErrTranscriptionFailed), "transcribe")
	assert.Contains(t, Message(ErrSynthesisFailed), "play audio")
	assert.Empty(t, Message(nil))
}

// =============================================================================
// PLAYBACK TESTS
// =============================================================================

func TestPlayback_Exclusive(t *testing.T) {
	player := &fakePlayer{}
	p := NewPlayback(&fakeTTS{}, player, nil, nil)

	started, err := p.Speak(context.Background(), "A", "first")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, "A", p.Active())

	started, err = p.Speak(context.Background(), "B", "second")
	require.NoError(t, err)
	assert.True(t, started)

	assert.True(t, player.stream(0).stopped(), "A released")
	assert.False(t, player.stream(1).stopped())
	assert.Equal(t, "B", p.Active())
}

func TestPlayback_SameKeyToggles(t *testing.T) {
	player := &fakePlayer{}
	p := NewPlayback(&fakeTTS{}, player, nil, nil)

	_, err := p.Speak(context.Background(), "A", "text")
	require.NoError(t, err)

	started, err := p.Speak(context.Background(), "A", "text")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Empty(t, p.Active())
	assert.True(t, player.stream(0).stopped())
}

func TestPlayback_NaturalEndReleases(t *testing.T) {
	player := &fakePlayer{}
	ended := make(chan string, 1)
	p := NewPlayback(&fakeTTS{}, player, func(key string) { ended <- key }, nil)

	_, err := p.Speak(context.Background(), "A", "text")
	require.NoError(t, err)
	player.stream(0).Stop()

	select {
	case key := <-ended:
		assert.Equal(t, "A", key)
	case <-time.After(2 * time.Second):
		t.Fatal("onEnd not called")
	}
	assert.Empty(t, p.Active())
}

func TestPlayback_StopDuringSynthesis(t *testing.T) {
	tts := &fakeTTS{gate: make(chan struct{})}
	player := &fakePlayer{}
	p := NewPlayback(tts, player, nil, nil)

	result := make(chan bool, 1)
	go func() {
		started, _ := p.Speak(context.Background(), "A", "text")
		result <- started
	}()
	require.Eventually(t, func() bool { return p.Active() == "A" }, time.Second, time.Millisecond)

	p.StopAll()
	assert.False(t, <-result)
	assert.Empty(t, p.Active())
	assert.Empty(t, player.streams)
}

func TestPlayback_Failures(t *testing.T) {
	p := NewPlayback(&fakeTTS{err: api.ErrNotSignedIn}, &fakePlayer{}, nil, nil)
	_, err := p.Speak(context.Background(), "A", "x")
	assert.ErrorIs(t, err, api.ErrNotSignedIn)
	assert.Empty(t, p.Active())

	p = NewPlayback(&fakeTTS{err: &api.ClientError{Type: api.ErrTypeNotConfigured}}, &fakePlayer{}, nil, nil)
	_, err = p.Speak(context.Background(), "A", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	p = NewPlayback(&fakeTTS{err: errors.New("500")}, &fakePlayer{}, nil, nil)
	_, err = p.Speak(context.Background(), "A", "x")
	assert.ErrorIs(t, err, ErrSynthesisFailed)
}

// =============================================================================
// COMMAND PLAYER TESTS
// =============================================================================

func TestCommandPlayer_RemovesTempFile(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	player := &CommandPlayer{Command: []string{"/bin/sh", "-c", "sleep 5", "player"}, TempDir: dir}

	stream, err := player.Play(context.Background(), &api.Audio{Data: []byte("x"), ContentType: "audio/wav"})
	require.NoError(t, err)

	files, _ := filepath.Glob(filepath.Join(dir, "*.wav"))
	assert.Len(t, files, 1)

	stream.Stop()
	<-stream.Done()
	files, _ = filepath.Glob(filepath.Join(dir, "*"))
	assert.Empty(t, files)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".mp3", extensionFor("audio/mpeg"))
	assert.Equal(t, ".wav", extensionFor("audio/wav"))
	assert.Equal(t, ".ogg", extensionFor("audio/ogg; codecs=opus"))
}
