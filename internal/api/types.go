// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"strings"

	"github.com/jeranaias/counsellor/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatRequest is the request body for /api/counsellor/chat.
type ChatRequest struct {
	Message string `json:"message"`
	// ConversationID is null until the session's conversation exists.
	ConversationID *string `json:"conversation_id"`
}

// SynthesisRequest is the request body for /api/tts.
type SynthesisRequest struct {
	Text string `json:"text"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is the successful response of /api/counsellor/chat.
type ChatResponse struct {
	Response string         `json:"response"`
	Actions  []model.Action `json:"actions,omitempty"`
}

// TranscriptionResponse is the successful response of /api/stt.
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// Audio is a synthesized speech payload.
type Audio struct {
	Data        []byte
	ContentType string
}

// errorBody is the error envelope of the backend. Detail is either a plain
// string or an object carrying a message.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// detailMessage extracts the human-readable detail from an error body.
func detailMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Detail, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}
