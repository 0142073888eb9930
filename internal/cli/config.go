// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration command for the ragchat CLI.
//
// Handles `ragchat config <subcommand>`:
//   show              Show current configuration (default)
//   get <key>         Print one value, dot notation
//   set <key> <value> Set one value and save
//   path              Print the config file path
//   keys              List all settable keys
package cli

import (
	"fmt"

	"github.com/jeranaias/ragchat-tui/internal/config"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "show", "":
		return configShow()
	case "get":
		return configGet(args.ConfigKey)
	case "set":
		return configSet(args.ConfigKey, args.ConfigVal)
	case "path":
		fmt.Println(config.ConfigPathTOML())
		return nil
	case "keys", "list":
		for _, key := range config.GetAllKeys() {
			fmt.Println(key)
		}
		return nil
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   args.Subcommand,
			Reason:  "unknown config subcommand",
			Example: "ragchat config set backend.base_url http://127.0.0.1:5000",
		}
	}
}

func configShow() error {
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Path: config.ConfigPathTOML(), Err: err}
	}
	fmt.Println(TitleStyle.Render("ragchat configuration"))
	fmt.Print(cfg.String())
	fmt.Println()
	fmt.Println(DimStyle.Render("file: " + config.ConfigPathTOML()))
	return nil
}

func configGet(key string) error {
	if key == "" {
		return &ValidationError{Field: "key", Reason: "usage: ragchat config get <key>", Example: "ragchat config get backend.base_url"}
	}
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Path: config.ConfigPathTOML(), Err: err}
	}
	value, err := cfg.Get(key)
	if err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: "unknown key, see `ragchat config keys`"}
	}
	fmt.Println(value)
	return nil
}

func configSet(key, value string) error {
	if key == "" || value == "" {
		return &ValidationError{Field: "arguments", Reason: "usage: ragchat config set <key> <value>", Example: "ragchat config set chat.use_rag false"}
	}
	cfg, err := config.Load()
	if err != nil {
		return &ConfigError{Path: config.ConfigPathTOML(), Err: err}
	}
	if err := cfg.Set(key, value); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	if err := cfg.SaveTOML(); err != nil {
		return &ConfigError{Path: config.ConfigPathTOML(), Err: err}
	}
	fmt.Println(SuccessStyle.Render("set ") + ValueStyle.Render(key+" = "+value))
	return nil
}
