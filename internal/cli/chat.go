// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/foliochat/internal/render"
	"github.com/jeranaias/foliochat/internal/ui/chat"
	"github.com/jeranaias/foliochat/internal/ui/styles"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Chat opens the full-screen chat when stdin and stdout are terminals and a
line-oriented prompt otherwise (or with --plain).

Commands inside the chat:
  /digest   show the repository digest
  /retry    try the last failed message again (Ctrl+R in full screen)
  /clear    start a new conversation
  /quit     leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !plain && Interactive() {
				return runTUI(cmd.Context(), opts)
			}
			return runREPL(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Use the line-oriented prompt even on a terminal")
	return cmd
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	app, err := opts.app(true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	theme := styles.NewTheme(app.Config.UI.Theme)
	sink := chat.NewProgramSink()
	orch := app.NewOrchestrator(sink)

	m := chat.New(orch, app.Digest, chat.Options{
		Owner:         app.Config.Profile.Owner,
		AssistantName: app.Config.Profile.AssistantName,
		Theme:         theme,
		Render:        terminalRenderer(glamourStyle(theme)),
		WordWrap:      app.Config.UI.WordWrap,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.Attach(p)

	watcher, err := app.WatchProfile(func(string) { sink.Notify(chat.ProfileReloadedMsg{}) })
	if err != nil {
		app.Log.WithError(err).Warn("profile watcher not started")
	}
	if watcher != nil {
		defer watcher.Close()
	}

	// Warm the digest so the first answer does not wait on GitHub.
	go app.Digest.RefreshIfStale(ctx)

	_, err = p.Run()
	return err
}

func runREPL(cmd *cobra.Command, opts *rootOptions) error {
	app, err := opts.app(false)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	orch := app.NewOrchestrator(lineSink{w: cmd.ErrOrStderr()})

	watcher, err := app.WatchProfile(nil)
	if err != nil {
		app.Log.WithError(err).Warn("profile watcher not started")
	}
	if watcher != nil {
		defer watcher.Close()
	}

	renderMD := func(md string) string { return md }
	if IsStdoutTTY() {
		width := GetTerminalWidth()
		renderMD = func(md string) string { return render.Terminal(md, width) }
	}

	repl := &REPL{
		conv:      orch,
		digest:    app.Digest.Text,
		render:    renderMD,
		greeting:  app.Prompt.Greeting(),
		assistant: app.Config.Profile.AssistantName,
		out:       out,
	}
	return repl.Run(cmd.Context())
}

func glamourStyle(theme *styles.Theme) string {
	if theme.IsDark {
		return "dark"
	}
	return "light"
}

// terminalRenderer returns a chat.RenderFunc with one glamour renderer per
// width. Renderer construction failures fall back to raw markdown.
func terminalRenderer(style string) chat.RenderFunc {
	var (
		mu    sync.Mutex
		cache = map[int]*render.TerminalRenderer{}
	)
	return func(md string, width int) string {
		mu.Lock()
		r, ok := cache[width]
		if !ok {
			r, _ = render.NewTerminal(style, width)
			cache[width] = r
		}
		mu.Unlock()
		return r.Render(md)
	}
}
