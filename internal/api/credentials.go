// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Credentials supplies the bearer token for backend calls. An empty token
// (or ErrNotSignedIn) means the user is not signed in.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token, or ErrNotSignedIn when it is empty.
func (s StaticToken) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if tok == "" {
		return "", ErrNotSignedIn
	}
	return tok, nil
}

// TokenFile reads the bearer token from a file on every call, so signing in
// from another process takes effect without a restart.
type TokenFile string

// Token returns the file's trimmed contents.
func (f TokenFile) Token(context.Context) (string, error) {
	if f == "" {
		return "", ErrNotSignedIn
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotSignedIn
		}
		return "", err
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNotSignedIn
	}
	return tok, nil
}

// Chain tries each source in order and returns the first token found.
type Chain []Credentials

// Token returns the first available token.
func (c Chain) Token(ctx context.Context) (string, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		tok, err := src.Token(ctx)
		if err == nil && tok != "" {
			return tok, nil
		}
		if err != nil && !errors.Is(err, ErrNotSignedIn) {
			return "", err
		}
	}
	return "", ErrNotSignedIn
}
