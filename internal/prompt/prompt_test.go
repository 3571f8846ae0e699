// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_System(t *testing.T) {
	b := NewBuilder(Profile{Owner: "Sridharan G", AssistantName: "S.ai", Body: "  **Skills**: Python  "})

	got := b.System("## Repository Overview\nsridhar1805 has 2 active repositories")

	assert.True(t, strings.HasPrefix(got, "You are S.ai, Sridharan G's friendly AI assistant"))
	assert.Contains(t, got, "---\n**Skills**: Python\n---\n")
	assert.True(t, strings.HasSuffix(got, "REPOSITORY INFORMATION:\n## Repository Overview\nsridhar1805 has 2 active repositories"))
}

func TestBuilder_SystemWithoutProfileBody(t *testing.T) {
	b := NewBuilder(Profile{Owner: "Raven"})
	got := b.System("Working on some exciting new projects!")

	assert.Contains(t, got, "You are Folio, Raven's")
	assert.NotContains(t, got, "---")
	assert.Contains(t, got, "REPOSITORY INFORMATION:\nWorking on some exciting new projects!")
}

func TestBuilder_SystemIsDeterministic(t *testing.T) {
	b := NewBuilder(Profile{Owner: "Raven", Body: "bio"})
	assert.Equal(t, b.System("d"), b.System("d"))
}

func TestBuilder_SetBody(t *testing.T) {
	b := NewBuilder(Profile{Owner: "Raven", Body: "old"})
	b.SetBody("new bio\n")
	assert.Equal(t, "new bio", b.Profile().Body)
	assert.Contains(t, b.System(""), "new bio")
}

func TestBuilder_Greeting(t *testing.T) {
	b := NewBuilder(Profile{Owner: "Sridharan", AssistantName: "S.ai"})
	assert.Equal(t, "Hi there! 👋 I'm S.ai, your guide to Sridharan's portfolio. "+
		"I can tell you all about Sridharan's skills, projects, experience, and more. "+
		"What would you like to know about their work?", b.Greeting())
}

func TestLoadProfileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.md")
	require.NoError(t, os.WriteFile(path, []byte("# About\nML engineer"), 0600))

	body, err := LoadProfileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# About\nML engineer", body)

	_, err = LoadProfileFile(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)

	big := filepath.Join(dir, "big.md")
	require.NoError(t, os.WriteFile(big, make([]byte, maxProfileSize+1), 0600))
	_, err = LoadProfileFile(big)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.md")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0600))

	log := logrus.New()
	log.SetOutput(io.Discard)

	b := NewBuilder(Profile{Owner: "Raven", Body: "first"})
	changed := make(chan string, 4)
	w, err := NewWatcher(path, b, func(body string) { changed <- body }, log)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("second"), 0600))

	select {
	case body := <-changed:
		assert.Equal(t, "second", body)
	case <-time.After(5 * time.Second):
		t.Fatal("profile change not observed")
	}
	assert.Equal(t, "second", b.Profile().Body)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.md")
	require.NoError(t, os.WriteFile(path, []byte("bio"), 0600))

	b := NewBuilder(Profile{Owner: "Raven", Body: "bio"})
	changed := make(chan string, 1)
	w, err := NewWatcher(path, b, func(body string) { changed <- body }, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	select {
	case <-changed:
		t.Fatal("unexpected reload")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, "bio", b.Profile().Body)
}
