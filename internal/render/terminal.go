// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is the wrap width used when none is given.
const DefaultWordWrap = 80

// TerminalRenderer renders markdown for a terminal with glamour.
type TerminalRenderer struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

// NewTerminal creates a renderer. style is a glamour standard style
// ("dark", "light", "notty", ...) or "auto" / "" for detection.
func NewTerminal(style string, width int) (*TerminalRenderer, error) {
	if width <= 0 {
		width = DefaultWordWrap
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	return &TerminalRenderer{tr: tr}, nil
}

// Render renders markdown, returning it unchanged on failure.
func (r *TerminalRenderer) Render(markdown string) string {
	if r == nil || r.tr == nil {
		return markdown
	}
	r.mu.Lock()
	out, err := r.tr.Render(markdown)
	r.mu.Unlock()
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

var (
	termMu        sync.Mutex
	termRenderers = map[int]*TerminalRenderer{}
)

// Terminal renders markdown at width with automatic style detection.
// Renderers are cached per width.
func Terminal(markdown string, width int) string {
	if width <= 0 {
		width = DefaultWordWrap
	}
	termMu.Lock()
	r, ok := termRenderers[width]
	if !ok {
		var err error
		r, err = NewTerminal("auto", width)
		if err != nil {
			termMu.Unlock()
			return markdown
		}
		termRenderers[width] = r
	}
	termMu.Unlock()
	return r.Render(markdown)
}
