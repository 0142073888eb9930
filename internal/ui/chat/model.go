// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/backend"
	"github.com/jeranaias/ragchat-tui/internal/chat"
	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/render"
	"github.com/jeranaias/ragchat-tui/internal/store"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State is the chat view's top-level mode.
type State int

const (
	// StateReady means input is accepted and no generation runs.
	StateReady State = iota

	// StateStreaming means an answer is being received.
	StateStreaming
)

// Overlay identifies which overlay, if any, covers the chat view.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlaySessions
	OverlayModels
	OverlayHelp

	// OverlayModal is a blocking error notice for failed session
	// operations. Any key dismisses it.
	OverlayModal
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the whole chat interface.
type Model struct {
	// Collaborators
	cfg      *config.Config
	client   *backend.Client
	store    *store.SessionStore
	coord    *chat.Coordinator
	renderer *render.Renderer

	// Styling
	theme *styles.Theme

	// State
	state   State
	overlay Overlay

	// Components
	viewport    viewport.Model
	input       textarea.Model
	spinner     components.Spinner
	statusBar   *components.StatusBar
	sessionList *components.SessionList
	modelPicker *components.ModelPicker
	keyMap      KeyMap

	// Streaming plumbing. The events channel carries completed-work
	// messages from goroutines into the Bubble Tea loop; the coalescer
	// carries fragment text. Both outlive Model copies.
	events    chan tea.Msg
	coalescer *RenderCoalescer

	// Streaming display state: the text painted for the in-flight
	// answer, and the session it belongs to.
	streamText      string
	streamSessionID string

	// Per-session failed-generation notices, rendered where the answer
	// would have been. Cleared by the next send in that session.
	genErr map[string]error

	// Modal notice state
	modalTitle string
	modalErr   error

	// Backend status
	modelName  string
	useRAG     bool
	ragLoaded  bool
	chunkCount int

	// Transient status bar notice sequencing
	noticeSeq int

	// Dimensions
	width  int
	height int
	ready  bool
}

// New wires up the chat interface over a backend client and session
// store built from the given config.
func New(cfg *config.Config) *Model {
	theme := styles.NewTheme()

	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        time.Duration(cfg.Backend.TimeoutSecs) * time.Second,
		StatusInterval: time.Duration(cfg.Backend.StatusPollSecs) * time.Second,
		MaxRetries:     cfg.Backend.MaxRetries,
	})
	sessions := store.NewSessionStore(client)

	m := &Model{
		cfg:      cfg,
		client:   client,
		store:    sessions,
		renderer: render.NewRenderer(cfg.UI.WordWrap),
		theme:    theme,
		keyMap:   DefaultKeyMap(),
		events:   make(chan tea.Msg, 64),
		coalescer: NewRenderCoalescer(
			cfg.Chat.StreamBatchSize,
			time.Duration(cfg.Chat.StreamIntervalMS)*time.Millisecond,
		),
		genErr:    make(map[string]error),
		useRAG:    cfg.Chat.UseRAG,
		statusBar: components.NewStatusBar(theme),
	}

	m.sessionList = components.NewSessionList(theme, sessions.Filter)
	m.modelPicker = components.NewModelPicker(theme)
	m.spinner = components.NewSpinner(theme)

	m.coord = chat.NewCoordinator(client, sessions, chat.Callbacks{
		OnFragment: m.coalescer.Put,
		OnCompleted: func(sessionID string, message *model.Message, stats *backend.StreamStats) {
			m.events <- generationFinishedMsg{
				SessionID: sessionID,
				Outcome:   chat.RunCompleted,
				Message:   message,
				Stats:     stats,
			}
		},
		OnFailed: func(sessionID string, err error) {
			m.events <- generationFinishedMsg{
				SessionID: sessionID,
				Outcome:   chat.RunFailed,
				Err:       err,
			}
		},
		OnCanceled: func(sessionID string, message *model.Message) {
			m.events <- generationFinishedMsg{
				SessionID: sessionID,
				Outcome:   chat.RunCanceled,
				Message:   message,
			}
		},
		OnSaveError: func(sessionID string, err error) {
			m.events <- saveNoticeMsg{SessionID: sessionID, Err: err}
		},
	})

	m.input = newInput()
	return m
}

// newInput builds the multiline message input: enter submits, alt+enter
// inserts a newline.
func newInput() textarea.Model {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Prompt = "> "
	ta.CharLimit = 8192
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()
	return ta
}

// NotifyConfigReload is called by the config watcher goroutine when
// the file on disk changed and the global config was swapped.
func (m *Model) NotifyConfigReload(cfg *config.Config) {
	m.events <- configReloadedMsg{Cfg: cfg}
}

// Init starts the event pump and the initial backend probes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.waitEvent(),
		m.fetchStatus(),
		m.fetchModels(),
		m.listSessions(),
		statusTickCmd(m.cfg.Backend.StatusPollSecs),
	)
}

// waitEvent delivers the next message from the async events channel.
// Handlers for channel-borne messages must re-arm it.
func (m *Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// activeSessionID returns the id of the session currently on screen.
func (m *Model) activeSessionID() string {
	return m.store.Active().ID
}

// setNotice shows a transient status bar notice and schedules its
// expiry.
func (m *Model) setNotice(text string, isError bool) tea.Cmd {
	m.noticeSeq++
	seq := m.noticeSeq
	m.statusBar.SetNotice(text, isError)
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return noticeExpiredMsg{Seq: seq}
	})
}
