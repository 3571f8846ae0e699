// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package digest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/foliochat/internal/github"
	"github.com/jeranaias/foliochat/internal/util"
)

// Fallback is the digest text used until a refresh has succeeded.
const Fallback = "Working on some exciting new projects!"

// maxCommitsPerRepo caps the "Recent Updates" list of each project.
const maxCommitsPerRepo = 3

var leadingPunct = regexp.MustCompile(`^[^\p{L}\p{N}_\s]+`)

var lower = cases.Lower(language.Und)

// NormalizeCommit reduces a commit message to its first line, strips a
// leading run of punctuation (emoji prefixes, "[", "*") and lower-cases it.
func NormalizeCommit(msg string) string {
	line := util.FirstLine(msg)
	line = strings.TrimSpace(leadingPunct.ReplaceAllString(line, ""))
	return lower.String(line)
}

// FeaturedTitle returns the title part of a featured entry
// ("AI Portfolio - Showcasing my AI tools" yields "AI Portfolio").
func FeaturedTitle(entry string) string {
	title, _, _ := strings.Cut(entry, " - ")
	return strings.TrimSpace(title)
}

// Format renders the digest document. The layout is fixed so the system
// prompt stays stable across refreshes.
func Format(owner string, repos []github.RepoSummary, featured []string) string {
	var b strings.Builder

	b.WriteString("## Repository Overview\n")
	fmt.Fprintf(&b, "%s has %d active repositories covering various projects.\n\n", owner, len(repos))

	// Languages in first-seen order.
	var langs []string
	counts := make(map[string]int)
	for _, r := range repos {
		if r.Language == "" {
			continue
		}
		if counts[r.Language] == 0 {
			langs = append(langs, r.Language)
		}
		counts[r.Language]++
	}
	b.WriteString("## Technologies Used\n")
	for _, l := range langs {
		fmt.Fprintf(&b, "- **%s**: %d projects\n", l, counts[l])
	}
	b.WriteString("\n")

	b.WriteString("## Project Details\n")
	for _, r := range repos {
		fmt.Fprintf(&b, "### %s\n", r.Name)
		if r.Description != "" {
			fmt.Fprintf(&b, "**Description**: %s\n", r.Description)
		}
		if r.Language != "" {
			fmt.Fprintf(&b, "**Primary Language**: %s\n", r.Language)
		}
		var stats []string
		if r.Stars > 0 {
			stats = append(stats, fmt.Sprintf("**Stars**: %d", r.Stars))
		}
		if r.Forks > 0 {
			stats = append(stats, fmt.Sprintf("**Forks**: %d", r.Forks))
		}
		if len(stats) > 0 {
			b.WriteString(strings.Join(stats, " | "))
			b.WriteString("\n")
		}
		if len(r.RecentCommits) > 0 {
			b.WriteString("**Recent Updates**:\n")
			for i, c := range r.RecentCommits {
				if i == maxCommitsPerRepo {
					break
				}
				fmt.Fprintf(&b, "- %s\n", NormalizeCommit(c.Message))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Featured Projects\n")
	for _, f := range featured {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	return b.String()
}

// Excerpt renders the per-project block used to steer a single answer.
func Excerpt(r github.RepoSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.Name)
	if r.Description != "" {
		fmt.Fprintf(&b, "**Description**: %s\n\n", r.Description)
	}
	if r.Language != "" {
		fmt.Fprintf(&b, "**Primary Language**: %s\n\n", r.Language)
	}
	if len(r.RecentCommits) > 0 {
		b.WriteString("**Recent Activity**:\n")
		for _, c := range r.RecentCommits {
			fmt.Fprintf(&b, "- %s\n", NormalizeCommit(c.Message))
		}
	}
	return b.String()
}
