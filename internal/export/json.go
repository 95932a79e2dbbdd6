// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/counsellor/internal/model"
)

// record is the structured form shared by the JSON and YAML exporters.
type record struct {
	ID            string          `json:"id" yaml:"id"`
	Title         string          `json:"title" yaml:"title"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
	LastMessageAt time.Time       `json:"last_message_at" yaml:"last_message_at"`
	Messages      []messageRecord `json:"messages" yaml:"messages"`
}

type messageRecord struct {
	ID        string         `json:"id,omitempty" yaml:"id,omitempty"`
	Role      model.Role     `json:"role" yaml:"role"`
	Content   string         `json:"content" yaml:"content"`
	Actions   []actionRecord `json:"actions,omitempty" yaml:"actions,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}

type actionRecord struct {
	Type   string         `json:"type" yaml:"type"`
	Args   map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
	Result string         `json:"result" yaml:"result"`
}

func toRecord(doc Document) record {
	r := record{
		ID:            doc.Conversation.ID,
		Title:         doc.Conversation.Title,
		CreatedAt:     doc.Conversation.CreatedAt,
		LastMessageAt: doc.Conversation.LastMessageAt,
		Messages:      make([]messageRecord, 0, len(doc.Messages)),
	}
	for _, m := range doc.Messages {
		mr := messageRecord{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		for _, a := range m.Actions {
			mr.Actions = append(mr.Actions, actionRecord{Type: a.Type, Args: a.Args, Result: a.Result})
		}
		r.Messages = append(r.Messages, mr)
	}
	return r
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON. Options do not filter JSON
// output; the export always holds the complete conversation.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(doc Document) ([]byte, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}
	return json.MarshalIndent(toRecord(doc), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
