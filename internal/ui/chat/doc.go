// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen of foliochat.

# Key Components

  - Model: the tea.Model. It owns a viewport with the history, a text
    input and a spinner shown while a reply is outstanding.
  - ProgramSink: an orchestrator.Sink that turns slot updates into
    SlotMsg values delivered through tea.Program.Send.
  - KeyMap: Enter sends, Ctrl+R tries a failed message again, PgUp/PgDn
    scroll, Esc or Ctrl+C quits.

# Exchange Flow

Enter appends the user block, blurs the input and runs Send as a tea.Cmd.
The orchestrator reports Thinking or Retrying placeholders and exactly one
Success or Failure slot through the sink; the terminal slot focuses the
input again. Slash commands (/help, /digest, /retry, /clear, /quit) are
handled locally and never reach the model.

# Usage

	sink := chat.NewProgramSink()
	orch := orchestrator.New(orchestrator.Deps{..., Sink: sink})
	m := chat.New(orch, digestBuilder, chat.Options{Owner: "Sridharan"})
	p := tea.NewProgram(m, tea.WithAltScreen())
	sink.Attach(p)
	_, err := p.Run()
*/
package chat
