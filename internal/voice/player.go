// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/jeranaias/counsellor/internal/api"
)

// DefaultPlayCommand plays a file without a window and exits at the end.
var DefaultPlayCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}

// CommandPlayer plays audio by writing it to a temporary file and running an
// external player with the file path as its last argument.
type CommandPlayer struct {
	// Command is the player argv (default: DefaultPlayCommand)
	Command []string

	// TempDir holds the temporary audio files (default: os.TempDir())
	TempDir string
}

// Play starts the player. The temporary file is removed when playback ends.
func (p *CommandPlayer) Play(ctx context.Context, audio *api.Audio) (Stream, error) {
	if audio == nil || len(audio.Data) == 0 {
		return nil, errors.New("no audio data")
	}
	argv := p.Command
	if len(argv) == 0 {
		argv = DefaultPlayCommand
	}

	f, err := os.CreateTemp(p.TempDir, "counsellor-tts-*"+extensionFor(audio.ContentType))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(audio.Data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write audio file: %w", err)
	}

	args := append(append([]string{}, argv[1:]...), path)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to start player: %w", err)
	}

	s := &commandStream{cmd: cmd, path: path, done: make(chan struct{})}
	go s.wait()
	return s, nil
}

type commandStream struct {
	cmd  *exec.Cmd
	path string
	done chan struct{}
	once sync.Once
}

func (s *commandStream) wait() {
	_ = s.cmd.Wait()
	os.Remove(s.path)
	close(s.done)
}

func (s *commandStream) Done() <-chan struct{} { return s.done }

func (s *commandStream) Stop() {
	s.once.Do(func() {
		select {
		case <-s.done:
			return
		default:
		}
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.done
	})
}

// extensionFor picks a file suffix players use to detect the format.
func extensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "webm"):
		return ".webm"
	default:
		return ".mp3"
	}
}
