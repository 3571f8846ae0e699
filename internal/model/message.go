// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the three roles the completion API accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single entry in the conversation transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Scratch marks a turn injected to steer exactly one completion.
	// Scratch turns are removed once that completion resolves.
	Scratch bool `json:"-"`

	// Synthetic marks a placeholder turn written by the client itself
	// (e.g. "[Error: Rate limited]"). It stays in the log but is never
	// sent back to the model.
	Synthetic bool `json:"-"`
}

// WireMessage is the role/content pair sent to the completion endpoint.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserTurn creates a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// NewSystemTurn creates a permanent system turn.
func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// NewScratchTurn creates a transient system turn.
func NewScratchTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content, Timestamp: time.Now(), Scratch: true}
}

// NewErrorTurn creates the synthetic assistant turn recorded when an
// exchange fails, e.g. "[Error: Rate limited]".
func NewErrorTurn(tag string) Turn {
	return Turn{
		Role:      RoleAssistant,
		Content:   "[Error: " + tag + "]",
		Timestamp: time.Now(),
		Synthetic: true,
	}
}

// Wire converts the turn to its on-the-wire form.
func (t Turn) Wire() WireMessage {
	return WireMessage{Role: t.Role.String(), Content: t.Content}
}
