// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/foliochat/internal/orchestrator"
)

const retryHint = "Press Ctrl+R to try again"

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.inputView(),
		m.statusView(),
	)
}

func (m *Model) headerView() string {
	title := m.theme.HeaderTitle.Render(m.assistantName)
	sub := m.theme.HeaderSubtitle.Render("your guide to " + possessive(m.owner) + " portfolio")
	header := m.theme.Header.Render(title + "  " + sub)
	if m.width > 0 {
		header = lipgloss.PlaceHorizontal(m.width, lipgloss.Left, header)
	}
	return header
}

func (m *Model) inputView() string {
	if m.busy {
		return m.theme.InputContainer.Render(m.theme.Thinking.Render("Waiting for the reply..."))
	}
	return m.theme.InputContainer.Render(m.input.View())
}

func (m *Model) statusView() string {
	parts := []string{m.digestStatus()}
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	line := strings.Join(parts, "  ")
	if m.width > 0 {
		line = lipgloss.NewStyle().MaxWidth(m.width).Render(line)
	}
	return m.theme.StatusBar.Render(line)
}

func (m *Model) digestStatus() string {
	if m.digest == nil {
		return ""
	}
	at := m.digest.LastRefreshed()
	switch {
	case at.IsZero():
		return m.theme.DigestStale.Render("repos: not loaded")
	case m.digest.Stale():
		return m.theme.DigestStale.Render("repos: stale, " + ago(at))
	default:
		return m.theme.DigestFresh.Render("repos: " + ago(at))
	}
}

func ago(t time.Time) string {
	d := time.Since(t).Round(time.Minute)
	if d < time.Minute {
		return "just now"
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}

// renderWidth is the width answers are wrapped to.
func (m *Model) renderWidth() int {
	if m.wordWrap > 0 {
		return m.wordWrap
	}
	if m.viewport.Width > 8 {
		return m.viewport.Width - 4
	}
	return 76
}

func (m *Model) historyView() string {
	blocks := make([]string, 0, len(m.entries))
	for i := range m.entries {
		blocks = append(blocks, m.entryView(&m.entries[i]))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) entryView(e *entry) string {
	// Placeholders animate, so they are never cached.
	if e.kind == entrySlot && (e.slot == orchestrator.SlotThinking || e.slot == orchestrator.SlotRetrying) {
		style := m.theme.Thinking
		if e.slot == orchestrator.SlotRetrying {
			style = m.theme.Retrying
		}
		return m.theme.AssistantLabel.Render(m.assistantName) + "\n" +
			m.spinner.View() + " " + style.Render(e.text)
	}
	if e.rendered != "" {
		return e.rendered
	}

	var out string
	switch e.kind {
	case entryUser:
		out = m.theme.UserLabel.Render("You") + "\n" + m.theme.UserBubble.Render(e.text)
	case entryAssistant:
		out = m.assistantView(e.text)
	case entryNotice:
		out = m.theme.Thinking.Render(e.text)
	case entrySlot:
		if e.slot == orchestrator.SlotSuccess {
			out = m.assistantView(e.text)
		} else {
			out = m.theme.AssistantLabel.Render(m.assistantName) + "\n" + m.theme.ErrorBox.Render(e.text)
			if e.retry {
				out += "\n" + m.theme.RetryHint.Render(retryHint)
			}
		}
	}
	e.rendered = out
	return out
}

func (m *Model) assistantView(markdown string) string {
	body := strings.TrimRight(m.render(markdown, m.renderWidth()), "\n")
	return m.theme.AssistantLabel.Render(m.assistantName) + "\n" + m.theme.AssistantBubble.Render(body)
}
