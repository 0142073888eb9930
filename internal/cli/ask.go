// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command handler for the ragchat CLI.
//
// Handles `ragchat ask "question"`: sends one message to the backend
// and streams the answer to stdout as fragments arrive. When stdout is
// a terminal, the accumulated answer is re-rendered as markdown once
// the stream ends; piped output stays raw.
//
// Examples:
//   ragchat ask "How do I rotate the index?"
//   ragchat ask --no-rag "What is a bloom filter?"
//   cat notes.txt | ragchat ask "Summarize this"
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"

	"github.com/jeranaias/ragchat-tui/internal/backend"
)

// maxStdinBytes caps piped input so an accidental `cat bigfile |
// ragchat ask` does not ship megabytes to the backend.
const maxStdinBytes = 256 * 1024

// HandleAsk sends one question and streams the answer.
func HandleAsk(args Args) error {
	query, err := buildQuery(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return &ValidationError{
			Field:   "question",
			Reason:  "nothing to ask",
			Example: `ragchat ask "How do I rotate the index?"`,
		}
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	client := newClient(cfg)

	if err := switchModelIfRequested(cfg, client, args.Model); err != nil {
		return err
	}

	ctx, cancel := streamContext(cfg)
	defer cancel()

	stats := backend.NewStreamStats()
	var answer strings.Builder
	var streamErr error
	fragments := 0

	// One-shot questions get a throwaway session so they never collide
	// with saved conversations.
	req := backend.ChatRequest{
		Message:   query,
		SessionID: "ask-" + uuid.NewString(),
		UseRAG:    cfg.Chat.UseRAG,
	}

	tty := IsStdoutTTY()
	err = client.ChatStream(ctx, req, func(event backend.StreamEvent) {
		switch ev := event.(type) {
		case backend.ContentFragment:
			stats.RecordFirstFragment()
			fragments++
			answer.WriteString(ev.Text)
			// Raw fragments print as they arrive so the user sees
			// progress; on a TTY a markdown pass follows at the end.
			fmt.Print(ev.Text)
		case backend.ErrorEvent:
			streamErr = ev.Err()
		}
	})
	if err != nil {
		return err
	}
	if streamErr != nil {
		return &CommandError{Command: "ask", Action: "generate", Reason: "backend reported an error", Err: streamErr}
	}

	stats.Finalize(fragments, answer.Len())
	fmt.Println()

	if tty && answer.Len() > 0 {
		if rendered, ok := renderAnswer(answer.String()); ok {
			fmt.Println()
			fmt.Print(rendered)
		}
	}

	if tty && !args.Quiet {
		fmt.Println(StatsStyle.Render(stats.Format()))
	}
	return nil
}

// buildQuery combines the argument text with piped stdin, if any.
func buildQuery(args Args) (string, error) {
	query := args.Query

	if IsTTY() {
		return query, nil
	}

	// Piped input becomes context appended after the question.
	piped, err := io.ReadAll(io.LimitReader(bufio.NewReader(os.Stdin), maxStdinBytes))
	if err != nil {
		return "", &CommandError{Command: "ask", Action: "read stdin", Reason: "could not read piped input", Err: err}
	}
	text := strings.TrimSpace(string(piped))
	if text == "" {
		return query, nil
	}
	if query == "" {
		return text, nil
	}
	return query + "\n\n" + text, nil
}

// renderAnswer runs the finished answer through glamour. Returns
// ok=false when rendering is unavailable so the raw text stands.
func renderAnswer(text string) (string, bool) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-2),
	)
	if err != nil {
		return "", false
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", false
	}
	return rendered, true
}
