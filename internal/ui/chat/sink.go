// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/foliochat/internal/orchestrator"
)

// SlotMsg carries a slot update from the orchestrator into the update loop.
type SlotMsg struct {
	Slot orchestrator.Slot
}

// ProfileReloadedMsg reports that the profile file changed on disk.
type ProfileReloadedMsg struct{}

// ProgramSink forwards orchestrator slot updates to a running tea.Program.
// Updates that arrive before Attach are dropped.
type ProgramSink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewProgramSink creates an unattached sink.
func NewProgramSink() *ProgramSink {
	return &ProgramSink{}
}

// Attach routes future updates to p.
func (s *ProgramSink) Attach(p *tea.Program) {
	s.AttachFunc(p.Send)
}

// AttachFunc routes future updates to send.
func (s *ProgramSink) AttachFunc(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
}

// Placeholder implements orchestrator.Sink.
func (s *ProgramSink) Placeholder(slot orchestrator.Slot) { s.forward(SlotMsg{Slot: slot}) }

// Resolve implements orchestrator.Sink.
func (s *ProgramSink) Resolve(slot orchestrator.Slot) { s.forward(SlotMsg{Slot: slot}) }

// Notify sends an arbitrary message, for collaborators outside the
// orchestrator such as the profile watcher.
func (s *ProgramSink) Notify(msg tea.Msg) { s.forward(msg) }

func (s *ProgramSink) forward(msg tea.Msg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}
