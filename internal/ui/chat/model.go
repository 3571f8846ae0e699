// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/jeranaias/foliochat/internal/model"
	"github.com/jeranaias/foliochat/internal/orchestrator"
	"github.com/jeranaias/foliochat/internal/ui/styles"
)

// Conversation is the part of the orchestrator the chat screen drives.
// *orchestrator.Orchestrator implements it.
type Conversation interface {
	Send(ctx context.Context, text string) (orchestrator.Outcome, error)
	Retry(ctx context.Context) (orchestrator.Outcome, error)
	Reset() error
	CanRetry() bool
	Transcript() *model.Transcript
}

// DigestView is the read side of the repository digest.
// *digest.Builder implements it.
type DigestView interface {
	Text() string
	LastRefreshed() time.Time
	Stale() bool
}

// RenderFunc renders markdown for a terminal of the given width.
type RenderFunc func(markdown string, width int) string

// entryKind is how a line of the transcript is drawn.
type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryNotice
	entrySlot
)

// entry is one rendered block of the chat history.
type entry struct {
	kind     entryKind
	text     string
	exchange int
	slot     orchestrator.SlotKind
	retry    bool

	// rendered caches the drawn block; cleared on resize.
	rendered string
}

// Options configures a Model.
type Options struct {
	Owner         string
	AssistantName string
	Theme         *styles.Theme
	Render        RenderFunc
	// WordWrap fixes the render width. Zero follows the window.
	WordWrap int
}

// Model is the Bubble Tea model of the chat screen.
//
// The input is blurred while an exchange is outstanding and focused again
// when that exchange's slot reaches Success or Failure.
type Model struct {
	conv   Conversation
	digest DigestView
	theme  *styles.Theme
	render RenderFunc
	keys   KeyMap

	owner         string
	assistantName string
	wordWrap      int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	entries []entry
	busy    bool
	run     int // begin calls so far
	ready   bool
	width   int
	height  int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the chat screen for conv.
func New(conv Conversation, dg DigestView, opts Options) *Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("auto")
	}
	if opts.Render == nil {
		opts.Render = func(md string, _ int) string { return md }
	}
	if opts.AssistantName == "" {
		opts.AssistantName = "Assistant"
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about " + possessive(opts.Owner) + " projects, skills, experience..."
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = opts.Theme.Thinking

	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		conv:          conv,
		digest:        dg,
		theme:         opts.Theme,
		render:        opts.Render,
		keys:          DefaultKeyMap(),
		owner:         opts.Owner,
		assistantName: opts.AssistantName,
		wordWrap:      opts.WordWrap,
		viewport:      viewport.New(80, 20),
		input:         ti,
		spinner:       sp,
		ctx:           ctx,
		cancel:        cancel,
	}
	m.loadTranscript()
	return m
}

// loadTranscript seeds the history with the visible turns of the
// conversation, which is the greeting for a fresh one.
func (m *Model) loadTranscript() {
	m.entries = m.entries[:0]
	for _, turn := range m.conv.Transcript().Turns() {
		switch turn.Role {
		case model.RoleUser:
			m.entries = append(m.entries, entry{kind: entryUser, text: turn.Content})
		case model.RoleAssistant:
			if !turn.Synthetic {
				m.entries = append(m.entries, entry{kind: entryAssistant, text: turn.Content})
			}
		}
	}
}

// Busy reports whether an exchange is outstanding.
func (m *Model) Busy() bool { return m.busy }

// InputEnabled reports whether the input accepts keystrokes.
func (m *Model) InputEnabled() bool { return m.input.Focused() }

// Close cancels any outstanding exchange.
func (m *Model) Close() { m.cancel() }

func possessive(name string) string {
	if name == "" {
		return "the owner's"
	}
	return name + "'s"
}
