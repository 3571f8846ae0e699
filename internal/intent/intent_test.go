// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRelevant(t *testing.T) {
	c := New("Sridharan G")

	tests := []struct {
		text string
		want bool
	}{
		{"explain calculus", false},
		{"What's the weather like?", false},
		{"How to cook pasta", false},
		{"explain your project", false},
		{"What frameworks do you use?", true},
		{"Show me your GitHub work", true},
		{"Is Sridharan available for hire?", true},
		{"hello", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsRelevant(tt.text))
		})
	}
}

func TestIsProjectQuery(t *testing.T) {
	yes := []string{
		"tell me about the project Flood-Prediction",
		"Tell me about project House-Rent",
		"what is the project MangaPH",
		"Can I get more details about the project NeuroGEN?",
		"more info on project ArtPromTai",
		"describe project Lazyprompter",
		"what do you think about the project AI Portfolio",
		"What is your favorite project?",
		"what do you like about project IslaWeb",
		"why do you like the project BookHubPH",
	}
	no := []string{
		"tell me about yourself",
		"what projects have you built",
		"list your repositories",
	}
	for _, s := range yes {
		assert.True(t, IsProjectQuery(s), s)
	}
	for _, s := range no {
		assert.False(t, IsProjectQuery(s), s)
	}
}

func TestIsListRequest(t *testing.T) {
	assert.True(t, IsListRequest("Can you list your repos?"))
	assert.True(t, IsListRequest("LIST all repositories"))
	assert.True(t, IsListRequest("give me a list of projects"))
	assert.False(t, IsListRequest("list your skills"))
	assert.False(t, IsListRequest("show me your projects"))
}

func TestClassify(t *testing.T) {
	c := New("Sridharan")
	r := c.Classify("what is the project Flood-Prediction")
	assert.False(t, r.Relevant, "denylist wins over the project template")
	assert.True(t, r.ProjectQuery)
	assert.False(t, r.ListRequest)
	assert.Equal(t, "Sridharan", c.Owner())
}

func TestSteeringText(t *testing.T) {
	assert.Contains(t, OffTopicReminder("Sridharan"), "MUST ONLY answer questions about Sridharan")
	assert.Contains(t, ListReminder("Sridharan"), "list of Sridharan's repositories/projects")

	got := ProjectContext("Flood-Prediction", "## Flood-Prediction")
	assert.Equal(t, "The user is asking about the project \"Flood-Prediction\". "+
		"Here's detailed information about this project that you should use in your response:\n\n"+
		"## Flood-Prediction\n\nMake sure to format your response nicely using markdown.", got)
}
