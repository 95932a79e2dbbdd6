// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// DEVICE INTERFACES
// =============================================================================

// Device grants exclusive access to a microphone.
type Device interface {
	// Open acquires the device and starts streaming audio chunks.
	Open(ctx context.Context) (Lease, error)
}

// Lease is an acquired recording device.
type Lease interface {
	// Chunks delivers recorded audio. It is closed when recording ends.
	Chunks() <-chan []byte

	// Err reports why recording ended early, after Chunks is closed.
	Err() error

	// Close stops recording and releases the device. It is idempotent and
	// returns once the device is released.
	Close() error
}

// DefaultRecordCommand records CD-quality WAV to stdout.
var DefaultRecordCommand = []string{"arecord", "-q", "-f", "cd", "-t", "wav"}

// =============================================================================
// COMMAND DEVICE
// =============================================================================

// CommandDevice records by running an external program that writes audio
// to stdout.
type CommandDevice struct {
	// Command is the recorder argv (default: DefaultRecordCommand)
	Command []string

	// ChunkSize is the read buffer size (default: 32 KiB)
	ChunkSize int
}

// Open starts the recorder.
func (d *CommandDevice) Open(ctx context.Context) (Lease, error) {
	argv := d.Command
	if len(argv) == 0 {
		argv = DefaultRecordCommand
	}
	size := d.ChunkSize
	if size <= 0 {
		size = 32 * 1024
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	l := &commandLease{
		cmd:    cmd,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		stderr: &stderr,
	}
	go l.read(stdout, size)
	return l, nil
}

type commandLease struct {
	cmd    *exec.Cmd
	chunks chan []byte
	done   chan struct{}
	stderr *bytes.Buffer

	closeOnce sync.Once
	closing   bool
	mu        sync.Mutex
	err       error
}

func (l *commandLease) read(r io.Reader, size int) {
	defer close(l.done)
	defer close(l.chunks)

	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			l.chunks <- chunk
		}
		if err != nil {
			break
		}
	}

	waitErr := l.cmd.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return
	}
	if strings.Contains(strings.ToLower(l.stderr.String()), "permission denied") {
		l.err = ErrPermissionDenied
	} else if waitErr != nil {
		l.err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, waitErr)
	}
}

func (l *commandLease) Chunks() <-chan []byte { return l.chunks }

func (l *commandLease) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close interrupts the recorder so it can finish the file, then kills it if
// it has not exited shortly after.
func (l *commandLease) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closing = true
		l.mu.Unlock()

		if l.cmd.Process != nil {
			_ = l.cmd.Process.Signal(os.Interrupt)
		}
		select {
		case <-l.done:
		case <-time.After(2 * time.Second):
			_ = l.cmd.Process.Kill()
			<-l.done
		}
	})
	return nil
}
