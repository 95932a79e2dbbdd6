// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the counsellor backend.
//
// The backend exposes four collaborators used by the chat session:
//
//   - GET  /health                 liveness probe
//   - POST /api/counsellor/chat    chat inference
//   - POST /api/stt                speech-to-text (multipart "audio" field)
//   - POST /api/tts                text-to-speech (raw audio response)
//
// Every call except the liveness probe needs a bearer credential. When no
// credential is available the client fails locally with ErrNotSignedIn and
// never touches the network.
//
// # Key Types
//
//   - Client: HTTP client for the backend
//   - Credentials: source of the bearer token
//   - ClientError: typed error with an ErrorType for classification
//
// # Usage
//
//	client := api.NewClient(api.DefaultConfig(), api.StaticToken(token))
//	resp, err := client.Chat(ctx, api.ChatRequest{Message: "Hello"})
//	switch api.Classify(err) {
//	case api.OutcomeWaking:
//	    // cold start, retry later
//	}
package api
