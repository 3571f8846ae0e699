// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the colors and lipgloss styles of the chat TUI.
//
// All colors are lipgloss AdaptiveColors. NewTheme settles whether the
// dark or light variant applies, either from configuration or by asking
// the terminal through termenv.
package styles
