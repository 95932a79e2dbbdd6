// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Endpoint paths of the counsellor backend.
const (
	HealthPath = "/health"
	ChatPath   = "/api/counsellor/chat"
	STTPath    = "/api/stt"
	TTSPath    = "/api/tts"
)

// MaxResponseSize caps response bodies read into memory. Synthesized audio
// is the largest payload.
const MaxResponseSize = 20 * 1024 * 1024

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://localhost:8000)
	BaseURL string

	// HTTPClient overrides the transport. Requests are bounded by the
	// caller's context, so the default client has no global timeout.
	HTTPClient *http.Client

	// Logger receives debug request logs (default: discarded)
	Logger *logrus.Entry
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://localhost:8000",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the counsellor backend.
//
// The Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	log        *logrus.Entry
}

// NewClient creates a backend client. creds may be nil, in which case every
// authenticated call fails with ErrNotSignedIn.
func NewClient(config *ClientConfig, creds Credentials) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultConfig().BaseURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	log := config.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		creds:      creds,
		log:        log.WithField("component", "api"),
	}
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// bearer resolves the credential before any request is built, so a missing
// sign-in never reaches the network.
func (c *Client) bearer(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", ErrNotSignedIn
	}
	tok, err := c.creds.Token(ctx)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrNotSignedIn
	}
	return tok, nil
}

// SignedIn reports whether a bearer credential is currently available.
func (c *Client) SignedIn(ctx context.Context) bool {
	_, err := c.bearer(ctx)
	return err == nil
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health calls the liveness endpoint. Any 2xx means ready.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, "", "backend not healthy")
	}
	return nil
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends one user message to the inference endpoint.
func (c *Client) Chat(ctx context.Context, chatReq ChatRequest) (*ChatResponse, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ChatPath, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := c.do(req, "failed to get response")
	if err != nil {
		return nil, err
	}

	var result ChatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if result.Response == "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "response missing text"}
	}
	return &result, nil
}

// =============================================================================
// SPEECH
// =============================================================================

// Transcribe uploads recorded audio and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return "", err
	}
	if filename == "" {
		filename = "recording.webm"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}
	if err := mw.Close(); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build upload", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+STTPath, &buf)
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := c.do(req, "speech-to-text failed")
	if err != nil {
		return "", err
	}

	var result TranscriptionResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return strings.TrimSpace(result.Text), nil
}

// Synthesize requests spoken audio for text.
func (c *Client) Synthesize(ctx context.Context, text string) (*Audio, error) {
	token, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(SynthesisRequest{Text: text})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TTSPath, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, detailMessage(data), "text-to-speech failed")
	}
	if len(data) == 0 {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "empty audio response"}
	}

	return &Audio{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, failure string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", req.URL.Path).Debug("request failed")
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, transportError(err)
	}

	c.log.WithFields(logrus.Fields{
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("request complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, detailMessage(data), failure)
	}
	return data, nil
}
