// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles the primary system turn: the assistant persona,
// the owner's profile and the current repository digest.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"
)

// DefaultAssistantName is used when no assistant name is configured.
const DefaultAssistantName = "Folio"

// maxProfileSize bounds profile files read from disk.
const maxProfileSize = 256 * 1024

var personaTemplate = template.Must(template.New("persona").Parse(
	`You are {{.Assistant}}, {{.Owner}}'s friendly AI assistant on their portfolio website. Your ONLY purpose is to help visitors learn about {{.Owner}}, their projects, skills, experience, and background.

IMPORTANT TOPIC CONSTRAINTS:
1. ONLY discuss {{.Owner}}'s projects, skills, background, and portfolio content
2. DO NOT answer questions about unrelated topics like:
   - Academic subjects (math, science, history, etc.)
   - General knowledge questions
   - Current events
   - Technical tutorials unrelated to {{.Owner}}'s work
   - Personal advice
   - Definitions of terms/concepts unrelated to {{.Owner}}

If a visitor asks about something unrelated, politely redirect them by saying you're specialized in sharing information about {{.Owner}}'s work, and suggest they ask about their projects, skills, or experience instead.

COMMUNICATION STYLE:
- Use simple, everyday language (no tech jargon)
- Be warm and engaging
- Focus on what {{.Owner}} is creating and why it matters
- Keep responses concise and friendly
- Use markdown formatting for better readability (headings, bold, lists, etc.)
{{if .Profile}}
---
{{.Profile}}
---
{{end}}
REPOSITORY INFORMATION:
{{.Digest}}`))

// Profile describes the portfolio owner and the assistant persona.
type Profile struct {
	Owner         string
	AssistantName string
	// Body is free-form markdown about the owner (experience, skills, ...).
	Body string
}

// Builder renders system prompts from a Profile. The profile body can be
// swapped at runtime (see Watcher); Builder is safe for concurrent use.
type Builder struct {
	mu      sync.RWMutex
	profile Profile
}

// NewBuilder creates a Builder for p.
func NewBuilder(p Profile) *Builder {
	if strings.TrimSpace(p.AssistantName) == "" {
		p.AssistantName = DefaultAssistantName
	}
	p.Body = strings.TrimSpace(p.Body)
	return &Builder{profile: p}
}

// Profile returns a copy of the current profile.
func (b *Builder) Profile() Profile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.profile
}

// SetBody replaces the profile body.
func (b *Builder) SetBody(body string) {
	b.mu.Lock()
	b.profile.Body = strings.TrimSpace(body)
	b.mu.Unlock()
}

// System renders the primary system turn around digest.
func (b *Builder) System(digest string) string {
	p := b.Profile()

	var buf bytes.Buffer
	err := personaTemplate.Execute(&buf, struct {
		Assistant, Owner, Profile, Digest string
	}{p.AssistantName, p.Owner, p.Body, digest})
	if err != nil {
		// The template is static; only a writer failure could get here.
		return fmt.Sprintf("You are %s, %s's portfolio assistant.\n\nREPOSITORY INFORMATION:\n%s",
			p.AssistantName, p.Owner, digest)
	}
	return buf.String()
}

// Greeting is the assistant's opening turn.
func (b *Builder) Greeting() string {
	p := b.Profile()
	return fmt.Sprintf("Hi there! 👋 I'm %s, your guide to %s's portfolio. "+
		"I can tell you all about %s's skills, projects, experience, and more. "+
		"What would you like to know about their work?", p.AssistantName, p.Owner, p.Owner)
}

// LoadProfileFile reads a markdown profile from path.
func LoadProfileFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat profile: %w", err)
	}
	if info.Size() > maxProfileSize {
		return "", fmt.Errorf("profile %s is %d bytes, limit is %d", path, info.Size(), maxProfileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read profile: %w", err)
	}
	return string(data), nil
}
