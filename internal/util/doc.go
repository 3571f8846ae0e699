// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across foliochat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, StringWidth: terminal-width aware helpers
//
// Time and Randomness:
//   - Clock, SystemClock, FakeClock: injectable time source with ctx-aware sleep
//   - Rand, SystemRand, FixedRand: injectable jitter and seed source
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
