// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/ragchat-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports sessions to JSON format.
// NOTE: JSON exports always include the complete session structure and do
// not respect filtering options, so the output is a faithful dump that can
// be parsed back.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter. The options parameter is
// accepted for consistency with other exporters.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a session to JSON format.
func (e *JSONExporter) Export(session *model.Session) ([]byte, error) {
	if session == nil {
		return nil, fmt.Errorf("session is nil")
	}

	return json.MarshalIndent(session, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
