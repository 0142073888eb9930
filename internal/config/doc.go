// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for ragchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Chat backend connection settings
//   - ChatConfig: Conversation and streaming behavior
//   - UIConfig: Terminal UI appearance
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RAGCHAT_*)
//   - $RAGCHAT_CONFIG (explicit file path, TOML or JSON)
//   - ~/.ragchat/config.toml
//   - ~/.ragchat/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	url := cfg.Backend.BaseURL
//	rag := cfg.Chat.UseRAG
package config
