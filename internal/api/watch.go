// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultWatchDebounce groups the bursts of events a single save produces.
const DefaultWatchDebounce = 200 * time.Millisecond

// =============================================================================
// TOKEN FILE WATCHER
// =============================================================================

// TokenWatcher reports sign-in changes made by other processes that write
// or remove the token file.
type TokenWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(signedIn bool)
	log      *logrus.Entry

	signedIn bool
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// WatchTokenFile starts watching path. onChange is called from the watcher
// goroutine whenever the signed-in state flips. The parent directory is
// created if needed, since fsnotify watches directories.
func WatchTokenFile(path string, debounce time.Duration, onChange func(signedIn bool), log *logrus.Entry) (*TokenWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	tw := &TokenWatcher{
		path:     path,
		watcher:  w,
		debounce: debounce,
		onChange: onChange,
		log:      log.WithField("component", "token-watch"),
		signedIn: tokenPresent(path),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go tw.loop()
	return tw, nil
}

// SignedIn reports whether the token file currently holds a token.
func (tw *TokenWatcher) SignedIn() bool {
	return tokenPresent(tw.path)
}

func (tw *TokenWatcher) loop() {
	defer close(tw.stopped)

	timer := time.NewTimer(tw.debounce)
	timer.Stop()

	for {
		select {
		case <-tw.done:
			timer.Stop()
			return

		case ev, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != tw.path {
				continue
			}
			timer.Reset(tw.debounce)

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			tw.log.WithError(err).Debug("watch error")

		case <-timer.C:
			now := tokenPresent(tw.path)
			if now == tw.signedIn {
				continue
			}
			tw.signedIn = now
			tw.log.WithField("signed_in", now).Info("sign-in state changed")
			if tw.onChange != nil {
				tw.onChange(now)
			}
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (tw *TokenWatcher) Close() error {
	var err error
	tw.once.Do(func() {
		close(tw.done)
		err = tw.watcher.Close()
		<-tw.stopped
	})
	return err
}

func tokenPresent(path string) bool {
	tok, err := TokenFile(path).Token(context.Background())
	return err == nil && tok != ""
}
