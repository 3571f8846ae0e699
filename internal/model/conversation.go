// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"
)

// MaxTurns bounds transcript growth. When exceeded, the oldest
// non-system turns are pruned; the primary system turn always survives.
const MaxTurns = 500

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered prompt history sent to the model.
//
// Index 0 always holds the primary system turn. Any further system turn
// must be a scratch turn and is removed by DropScratch.
//
// A Transcript is not safe for concurrent use; its owner serializes access.
type Transcript struct {
	turns     []Turn
	updatedAt time.Time
}

// NewTranscript creates a transcript whose primary system turn holds systemPrompt.
func NewTranscript(systemPrompt string) *Transcript {
	return &Transcript{
		turns:     []Turn{NewSystemTurn(systemPrompt)},
		updatedAt: time.Now(),
	}
}

// =============================================================================
// SYSTEM TURN
// =============================================================================

// SystemPrompt returns the content of the primary system turn.
func (t *Transcript) SystemPrompt() string {
	return t.turns[0].Content
}

// SetSystemPrompt replaces the primary system turn content in place.
func (t *Transcript) SetSystemPrompt(content string) {
	t.turns[0].Content = content
	t.turns[0].Timestamp = time.Now()
	t.updatedAt = time.Now()
}

// SystemCount returns the number of system turns, scratch included.
func (t *Transcript) SystemCount() int {
	n := 0
	for _, turn := range t.turns {
		if turn.Role == RoleSystem {
			n++
		}
	}
	return n
}

// =============================================================================
// TURN MANAGEMENT
// =============================================================================

// Append adds a turn to the end of the transcript. A non-scratch system
// turn is stored as scratch so the index-0 invariant cannot be broken.
func (t *Transcript) Append(turn Turn) {
	if turn.Role == RoleSystem {
		turn.Scratch = true
	}
	t.turns = append(t.turns, turn)
	t.updatedAt = time.Now()
	t.prune()
}

// AppendUser appends a user turn.
func (t *Transcript) AppendUser(content string) {
	t.Append(NewUserTurn(content))
}

// AppendAssistant appends an assistant turn.
func (t *Transcript) AppendAssistant(content string) {
	t.Append(NewAssistantTurn(content))
}

// AppendScratch appends a transient steering system turn.
func (t *Transcript) AppendScratch(content string) {
	t.Append(NewScratchTurn(content))
}

// InsertScratchBeforeLastUser places a scratch system turn immediately
// before the most recent user turn. It reports false when there is no
// user turn to anchor to.
func (t *Transcript) InsertScratchBeforeLastUser(content string) bool {
	idx := t.lastUserIndex()
	if idx < 0 {
		return false
	}
	turns := make([]Turn, 0, len(t.turns)+1)
	turns = append(turns, t.turns[:idx]...)
	turns = append(turns, NewScratchTurn(content))
	turns = append(turns, t.turns[idx:]...)
	t.turns = turns
	t.updatedAt = time.Now()
	return true
}

// DropScratch removes every transient turn: all scratch turns and any
// system turn other than the one at index 0. It returns the number removed.
func (t *Transcript) DropScratch() int {
	kept := t.turns[:1]
	removed := 0
	for i := 1; i < len(t.turns); i++ {
		turn := t.turns[i]
		if turn.Scratch || turn.Role == RoleSystem {
			removed++
			continue
		}
		kept = append(kept, turn)
	}
	t.turns = kept
	if removed > 0 {
		t.updatedAt = time.Now()
	}
	return removed
}

// HasScratch reports whether any scratch turn is present.
func (t *Transcript) HasScratch() bool {
	for _, turn := range t.turns {
		if turn.Scratch {
			return true
		}
	}
	return false
}

// LastUser returns the most recent user turn.
func (t *Transcript) LastUser() (Turn, bool) {
	idx := t.lastUserIndex()
	if idx < 0 {
		return Turn{}, false
	}
	return t.turns[idx], true
}

// Last returns the final turn.
func (t *Transcript) Last() Turn {
	return t.turns[len(t.turns)-1]
}

func (t *Transcript) lastUserIndex() int {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// Reset drops everything except the primary system turn.
func (t *Transcript) Reset() {
	t.turns = t.turns[:1]
	t.updatedAt = time.Now()
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// UpdatedAt returns the time of the last mutation.
func (t *Transcript) UpdatedAt() time.Time {
	return t.updatedAt
}

// Turns returns a copy of the turns.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Snapshot returns an independent copy of the transcript.
func (t *Transcript) Snapshot() *Transcript {
	return &Transcript{turns: t.Turns(), updatedAt: t.updatedAt}
}

// Wire returns the messages to send to the model. Synthetic error turns
// are left out; scratch turns are included because they exist to steer
// the very next completion.
func (t *Transcript) Wire() []WireMessage {
	out := make([]WireMessage, 0, len(t.turns))
	for _, turn := range t.turns {
		if turn.Synthetic {
			continue
		}
		out = append(out, turn.Wire())
	}
	return out
}

// prune keeps the transcript under MaxTurns by dropping the oldest
// turns after the primary system turn.
func (t *Transcript) prune() {
	if len(t.turns) <= MaxTurns {
		return
	}
	excess := len(t.turns) - MaxTurns
	turns := make([]Turn, 0, MaxTurns)
	turns = append(turns, t.turns[0])
	turns = append(turns, t.turns[1+excess:]...)
	t.turns = turns
}
