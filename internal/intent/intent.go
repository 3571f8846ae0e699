// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package intent classifies outgoing user text before it is sent to the
// model: off-topic detection, "ask about a project" phrasing and requests
// for a list of repositories. The checks are advisory; they only decide
// which steering turns accompany a message.
package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// ============================================================================
// KEYWORD LISTS
// ============================================================================

// offTopicTerms mark generic-knowledge questions. Checked before the
// on-topic list, so "explain your project" counts as off-topic.
var offTopicTerms = []string{
	"calculus", "math", "mathematics", "physics", "chemistry", "biology",
	"history", "geography", "politics", "religion", "philosophy",
	"what is", "define", "explain", "how to", "tutorial",
	"weather", "news", "sports", "stock", "invest", "recipe", "cook",
}

var onTopicTerms = []string{
	"project", "portfolio", "skill", "work", "create", "build",
	"code", "develop", "program", "tech", "experience", "github", "repo", "interest",
}

var projectQueryPatterns = compileAll(
	`tell me about (the )?project`,
	`what is (the )?project`,
	`more (information|info|details) (on|about) (the )?project`,
	`describe (the )?project`,
	`what do you think about (the )?project`,
	`what is your favorite project`,
	`what do you like about (the )?project`,
	`why do you like (the )?project`,
)

var listNouns = []string{"repos", "repositories", "projects"}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// ============================================================================
// CLASSIFIER
// ============================================================================

// Classifier holds the owner-specific vocabulary.
type Classifier struct {
	owner      string
	ownerTerms []string
}

// Result is the full classification of one message.
type Result struct {
	Relevant     bool
	ProjectQuery bool
	ListRequest  bool
}

// New creates a Classifier for the portfolio owner. Each word of owner is
// treated as an on-topic term.
func New(owner string) *Classifier {
	c := &Classifier{owner: strings.TrimSpace(owner)}
	for _, w := range strings.Fields(strings.ToLower(c.owner)) {
		if len(w) > 1 {
			c.ownerTerms = append(c.ownerTerms, w)
		}
	}
	return c
}

// Owner returns the owner's display name.
func (c *Classifier) Owner() string {
	return c.owner
}

// Classify runs every check on text.
func (c *Classifier) Classify(text string) Result {
	return Result{
		Relevant:     c.IsRelevant(text),
		ProjectQuery: IsProjectQuery(text),
		ListRequest:  IsListRequest(text),
	}
}

// IsRelevant reports whether text looks like a question about the owner.
// Unknown phrasing is relevant: the system prompt is the real enforcement.
func (c *Classifier) IsRelevant(text string) bool {
	q := strings.ToLower(text)
	if containsAny(q, offTopicTerms) {
		return false
	}
	if containsAny(q, onTopicTerms) || containsAny(q, c.ownerTerms) {
		return true
	}
	return true
}

// IsProjectQuery reports whether text uses one of the "ask about a
// project" templates.
func IsProjectQuery(text string) bool {
	q := strings.ToLower(text)
	for _, re := range projectQueryPatterns {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

// IsListRequest reports whether text asks for a list of repositories or projects.
func IsListRequest(text string) bool {
	q := strings.ToLower(text)
	return strings.Contains(q, "list") && containsAny(q, listNouns)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// ============================================================================
// STEERING TEXT
// ============================================================================

// OffTopicReminder is the scratch system turn added after an off-topic question.
func OffTopicReminder(owner string) string {
	return fmt.Sprintf("Remember: You MUST ONLY answer questions about %s and their work. "+
		"The previous question appears to be off-topic. "+
		"Politely explain that you can only discuss %s's projects, skills, and experience.", owner, owner)
}

// ListReminder is the scratch system turn added to a request for a list of projects.
func ListReminder(owner string) string {
	return fmt.Sprintf("The user is asking for a list of %s's repositories/projects. "+
		"Please provide a well-formatted list of projects with brief descriptions using markdown formatting. "+
		"Use the repository information I provided earlier.", owner)
}

// ProjectContext is the scratch system turn placed before a question about a known project.
func ProjectContext(name, excerpt string) string {
	return fmt.Sprintf("The user is asking about the project \"%s\". "+
		"Here's detailed information about this project that you should use in your response:\n\n%s\n\n"+
		"Make sure to format your response nicely using markdown.", name, excerpt)
}
