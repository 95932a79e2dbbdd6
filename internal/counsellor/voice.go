// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package counsellor

import (
	"context"

	"github.com/jeranaias/counsellor/internal/util"
	"github.com/jeranaias/counsellor/internal/voice"
)

// =============================================================================
// VOICE
// =============================================================================

// VoiceInput reports whether recording is set up.
func (s *Session) VoiceInput() bool {
	return s.capture != nil
}

// VoiceOutput reports whether narration is set up.
func (s *Session) VoiceOutput() bool {
	return s.playback != nil
}

// Recording reports whether voice capture is live.
func (s *Session) Recording() bool {
	return s.capture != nil && s.capture.Active()
}

// Speaking returns the LocalID of the message being narrated, or "".
func (s *Session) Speaking() string {
	if s.playback == nil {
		return ""
	}
	return s.playback.Active()
}

// ToggleRecording starts or stops voice capture and returns whether it is
// live afterwards. The recording is released before this returns; its
// transcription arrives later as an InputEvent or a NoticeEvent.
func (s *Session) ToggleRecording(ctx context.Context) (bool, error) {
	if s.capture == nil {
		return false, ErrVoiceUnavailable
	}

	recording, err := s.capture.Toggle(s.ctx)
	if err != nil {
		s.notify(NoticeEvent{Message: voice.Message(err)})
		s.notify(RecordingEvent{})
		return false, err
	}
	s.notify(RecordingEvent{Recording: recording})
	return recording, nil
}

// onTranscript appends transcribed speech to the input buffer.
func (s *Session) onTranscript(t voice.Transcript) {
	if t.Err != nil {
		s.notify(NoticeEvent{Message: voice.Message(t.Err)})
		return
	}
	if t.Text == "" {
		return
	}

	s.mu.Lock()
	s.input = util.JoinSpaced(s.input, t.Text)
	text := s.input
	s.mu.Unlock()

	s.notify(InputEvent{Text: text})
}

// Speak narrates the message with the given key, or stops it when it is
// already playing. Any other narration is stopped first. Narration is
// tracked by LocalID, which stays the same once the server ID arrives.
func (s *Session) Speak(ctx context.Context, key string) error {
	if s.playback == nil {
		return ErrVoiceUnavailable
	}
	msg, ok := s.transcript.Find(key)
	if !ok {
		return ErrUnknownMessage
	}
	key = msg.LocalID

	if s.playback.Active() == "" {
		s.notify(PlaybackEvent{Key: key})
	}
	_, err := s.playback.Speak(s.ctx, key, msg.Content)
	if err != nil {
		s.notify(NoticeEvent{Message: voice.Message(err)})
	}
	s.notify(PlaybackEvent{Key: s.playback.Active()})
	return err
}

// StopSpeaking ends any narration.
func (s *Session) StopSpeaking() {
	if s.playback == nil {
		return
	}
	s.playback.StopAll()
	s.notify(PlaybackEvent{})
}

func (s *Session) onPlaybackEnd(key string) {
	s.notify(PlaybackEvent{})
}
