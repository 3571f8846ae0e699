// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style

	Thinking  lipgloss.Style
	Retrying  lipgloss.Style
	ErrorBox  lipgloss.Style
	RetryHint lipgloss.Style

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	StatusBar    lipgloss.Style
	DigestFresh  lipgloss.Style
	DigestStale  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a theme for mode ("auto", "dark" or "light").
// "auto" asks the terminal for its background.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	// AdaptiveColor resolves against lipgloss's notion of the background.
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// bubble is a message body with a colored rule on its left edge.
func bubble(fg, rule lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(fg).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(rule).
		PaddingLeft(1)
}

func bold(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func italic(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Italic(true)
}

func (t *Theme) initStyles() {
	t.Header = bold(Cyan).Background(SurfaceDim).Padding(0, 2)
	t.HeaderTitle = bold(Purple)
	t.HeaderSubtitle = italic(TextSecondary)

	t.UserLabel = bold(Cyan)
	t.UserBubble = bubble(UserBubbleFg, UserBubbleBorder)
	t.AssistantLabel = bold(Purple)
	t.AssistantBubble = bubble(AssistantBubbleFg, AssistantBubbleBorder)

	t.Thinking = italic(TextSecondary)
	t.Retrying = italic(Amber)
	t.ErrorBox = bubble(ErrorBubbleFg, Rose)
	t.RetryHint = bold(Rose).PaddingLeft(2)

	t.InputContainer = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = bold(Cyan)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.DigestFresh = lipgloss.NewStyle().Foreground(Emerald)
	t.DigestStale = lipgloss.NewStyle().Foreground(Amber)
	t.ShortcutKey = bold(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)
}
