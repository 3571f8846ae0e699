// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and turns.
//
// # Key Types
//
//   - Transcript: ordered prompt history with the primary system turn at index 0
//   - Turn: single entry with role, content, and scratch/synthetic markers
//   - Role: turn role enumeration (system, user, assistant)
//   - WireMessage: role/content pair sent to the completion endpoint
//
// # Scratch turns
//
// A scratch turn is a system turn injected to steer one completion. It is
// created with NewScratchTurn (or AppendScratch / InsertScratchBeforeLastUser)
// and removed by DropScratch once that completion resolves:
//
//	tr := model.NewTranscript(systemPrompt)
//	tr.AppendUser("explain calculus")
//	tr.AppendScratch("Remember: only discuss the portfolio.")
//	// ... send tr.Wire() ...
//	tr.DropScratch()
package model
