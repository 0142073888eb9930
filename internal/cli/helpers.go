// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared setup for CLI command handlers.
package cli

import (
	"context"
	"time"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/config"
)

// loadConfig loads the persisted configuration, applies environment
// overrides, then applies flag overrides on top. Flags win.
func loadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &ConfigError{Path: config.ConfigPathTOML(), Err: err}
	}
	cfg.ApplyEnvOverrides()

	if args.Backend != "" {
		cfg.Backend.BaseURL = args.Backend
	}
	if args.NoRAG {
		cfg.Chat.UseRAG = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: config.ConfigPathTOML(), Err: err}
	}
	return cfg, nil
}

// newClient builds a backend client from a loaded config.
func newClient(cfg *config.Config) *backend.Client {
	return backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		StatusInterval: time.Duration(cfg.Backend.StatusPollSecs) * time.Second,
		MaxRetries:     cfg.Backend.MaxRetries,
	})
}

// opContext returns a context bounded by the config's request timeout,
// for non-streaming backend calls.
func opContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(),
		time.Duration(cfg.Backend.TimeoutSecs)*time.Second)
}

// streamContext returns a context for streamed answers. A zero
// stream_timeout_secs means unbounded: a generation can legitimately
// run for minutes, so cancellation comes from the user instead.
func streamContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Backend.StreamTimeoutSecs <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(),
		time.Duration(cfg.Backend.StreamTimeoutSecs)*time.Second)
}

// switchModelIfRequested applies a --model override for this
// invocation before any chat request is sent.
func switchModelIfRequested(cfg *config.Config, client *backend.Client, model string) error {
	if model == "" {
		return nil
	}
	ctx, cancel := opContext(cfg)
	defer cancel()
	if _, err := client.SwitchModel(ctx, model); err != nil {
		return &CommandError{Command: "model", Action: "switch", Reason: "backend rejected model " + model, Err: err}
	}
	return nil
}
