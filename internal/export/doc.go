// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversation transcripts to files.
//
// Two formats are supported: Markdown with YAML frontmatter for reading
// and sharing, and JSON as a faithful dump of the session structure that
// can be parsed back.
//
// # Usage
//
//	path, err := export.ExportSession(session, "markdown", &export.Options{
//	    OutputDir: cfg.Export.Dir,
//	})
package export
