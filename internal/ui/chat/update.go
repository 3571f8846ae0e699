// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/foliochat/internal/orchestrator"
)

// outcomeMsg is the return of a Send or Retry command. run identifies the
// begin call that started it.
type outcomeMsg struct {
	run     int
	outcome orchestrator.Outcome
	err     error
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SlotMsg:
		return m, m.applySlot(msg.Slot)

	case outcomeMsg:
		return m, m.applyOutcome(msg)

	case ProfileReloadedMsg:
		m.notice("Profile reloaded.")
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Retry):
		return m, m.retry()

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()
	}

	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles Enter.
func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	m.entries = append(m.entries, entry{kind: entryUser, text: text})
	return m.begin(func() (orchestrator.Outcome, error) {
		return m.conv.Send(m.ctx, text)
	})
}

// retry re-attempts the last failed exchange.
func (m *Model) retry() tea.Cmd {
	if m.busy || !m.conv.CanRetry() {
		return nil
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == entrySlot {
			m.entries[i].retry = false
			m.entries[i].rendered = ""
			break
		}
	}
	return m.begin(func() (orchestrator.Outcome, error) {
		return m.conv.Retry(m.ctx)
	})
}

// begin disables input and starts call in the background.
func (m *Model) begin(call func() (orchestrator.Outcome, error)) tea.Cmd {
	m.run++
	run := m.run
	m.busy = true
	m.input.Blur()
	m.refresh()
	return tea.Batch(func() tea.Msg {
		out, err := call()
		return outcomeMsg{run: run, outcome: out, err: err}
	}, m.spinner.Tick)
}

// end re-enables input. It is a no-op when nothing is outstanding.
func (m *Model) end() tea.Cmd {
	if !m.busy {
		return nil
	}
	m.busy = false
	return m.input.Focus()
}

func (m *Model) applySlot(slot orchestrator.Slot) tea.Cmd {
	m.upsertSlot(slot)
	var cmd tea.Cmd
	if slot.Kind == orchestrator.SlotSuccess || slot.Kind == orchestrator.SlotFailure {
		cmd = m.end()
	}
	m.refresh()
	return cmd
}

func (m *Model) upsertSlot(slot orchestrator.Slot) {
	e := entry{
		kind:     entrySlot,
		text:     slot.Text,
		exchange: slot.Exchange,
		slot:     slot.Kind,
		retry:    slot.RetryAvailable,
	}
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].kind == entrySlot && m.entries[i].exchange == slot.Exchange {
			m.entries[i] = e
			return
		}
	}
	m.entries = append(m.entries, e)
}

// applyOutcome finishes an exchange whose slot never reached the screen,
// e.g. when the sink is not attached.
//
// Outcomes of an earlier run are dropped: their terminal slot already
// re-enabled input, and a newer exchange may be outstanding.
func (m *Model) applyOutcome(msg outcomeMsg) tea.Cmd {
	if msg.run != m.run {
		return nil
	}
	if msg.err != nil {
		m.notice(msg.err.Error())
		cmd := m.end()
		m.refresh()
		return cmd
	}
	if !m.busy {
		return nil
	}

	out := msg.outcome
	switch out.Status {
	case orchestrator.StatusSucceeded:
		return m.applySlot(orchestrator.Slot{
			Exchange: out.Exchange,
			Kind:     orchestrator.SlotSuccess,
			Text:     out.Reply,
		})
	case orchestrator.StatusFailed:
		slot := orchestrator.Slot{Exchange: out.Exchange, Kind: orchestrator.SlotFailure}
		if out.Err != nil {
			slot.Text = out.Err.DisplayText()
			slot.RetryAvailable = true
		}
		return m.applySlot(slot)
	}
	return nil
}

func (m *Model) notice(text string) {
	m.entries = append(m.entries, entry{kind: entryNotice, text: text})
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	headerH := lipgloss.Height(m.headerView())
	footerH := lipgloss.Height(m.inputView()) + lipgloss.Height(m.statusView())
	vh := height - headerH - footerH
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vh
	m.input.Width = width - 6

	for i := range m.entries {
		m.entries[i].rendered = ""
	}
	m.ready = true
	m.refresh()
}

// refresh re-renders the history into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.historyView())
	m.viewport.GotoBottom()
}
