// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/foliochat/internal/orchestrator"
)

// Command is a slash command available in the chat input.
type Command struct {
	Name        string
	Description string
}

// Commands lists the slash commands in help order.
var Commands = []Command{
	{"/help", "show this list"},
	{"/digest", "show the repository digest the assistant is using"},
	{"/retry", "try the last failed message again"},
	{"/clear", "start a new conversation"},
	{"/quit", "leave the chat"},
}

// runCommand executes a slash command typed into the input.
func (m *Model) runCommand(line string) tea.Cmd {
	name := strings.ToLower(strings.Fields(line)[0])

	switch name {
	case "/help", "/?":
		var sb strings.Builder
		sb.WriteString("Commands:")
		for _, c := range Commands {
			sb.WriteString("\n  " + c.Name + "  " + c.Description)
		}
		m.notice(sb.String())

	case "/digest":
		text := m.digest.Text()
		m.entries = append(m.entries, entry{kind: entryAssistant, text: text})
		m.refresh()

	case "/retry":
		if !m.conv.CanRetry() {
			m.notice(orchestrator.ErrNothingToRetry.Error())
			return nil
		}
		return m.retry()

	case "/clear", "/new":
		if err := m.conv.Reset(); err != nil {
			if errors.Is(err, orchestrator.ErrBusy) {
				m.notice("Wait for the current reply before starting over.")
			} else {
				m.notice(err.Error())
			}
			return nil
		}
		m.loadTranscript()
		m.refresh()

	case "/quit", "/exit", "/q":
		m.cancel()
		return tea.Quit

	default:
		m.notice("Unknown command " + name + ". Type /help for the list.")
	}
	return nil
}
