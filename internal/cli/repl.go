// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/foliochat/internal/orchestrator"
)

// replPrompt is plain text; liner miscounts the width of styled prompts.
const replPrompt = "you> "

// lineSink prints placeholder updates as status lines. The answer itself
// is printed by the REPL from the exchange outcome.
type lineSink struct {
	w io.Writer
}

func (s lineSink) Placeholder(slot orchestrator.Slot) {
	style := DimStyle
	if slot.Kind == orchestrator.SlotRetrying {
		style = WarningStyle
	}
	fmt.Fprintln(s.w, style.Render(slot.Text))
}

func (lineSink) Resolve(orchestrator.Slot) {}

// Conversation is what the REPL drives. *orchestrator.Orchestrator
// implements it.
type Conversation interface {
	Send(ctx context.Context, text string) (orchestrator.Outcome, error)
	Retry(ctx context.Context) (orchestrator.Outcome, error)
	Reset() error
}

// REPL is the line-oriented chat used when the full-screen UI is not
// available. History is kept in memory only.
type REPL struct {
	conv      Conversation
	digest    func() string
	render    func(markdown string) string
	greeting  string
	assistant string
	out       io.Writer
}

// Greet prints the assistant's opening line.
func (r *REPL) Greet() {
	if r.greeting != "" {
		r.printAnswer(r.greeting)
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands."))
}

// Handle processes one input line and reports whether the session goes on.
func (r *REPL) Handle(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return true
	}

	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q", "exit", "quit":
		return false
	case "/help", "/?":
		fmt.Fprintln(r.out, "Commands: /retry  /digest  /clear  /quit")
		return true
	case "/digest":
		fmt.Fprintln(r.out, r.render(r.digest()))
		return true
	case "/clear", "/new":
		if err := r.conv.Reset(); err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render("[Error]"), err)
			return true
		}
		fmt.Fprintln(r.out, DimStyle.Render("Started a new conversation."))
		r.Greet()
		return true
	case "/retry":
		out, err := r.conv.Retry(ctx)
		if err != nil {
			fmt.Fprintln(r.out, DimStyle.Render(err.Error()))
			return true
		}
		r.report(out)
		return true
	}

	if strings.HasPrefix(input, "/") {
		fmt.Fprintln(r.out, DimStyle.Render("Unknown command. Type /help for the list."))
		return true
	}

	out, err := r.conv.Send(ctx, input)
	if err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render("[Error]"), err)
		return true
	}
	r.report(out)
	return true
}

func (r *REPL) report(out orchestrator.Outcome) {
	switch out.Status {
	case orchestrator.StatusSucceeded:
		r.printAnswer(out.Reply)
	case orchestrator.StatusFailed:
		msg := "exchange failed"
		if out.Err != nil {
			msg = out.Err.DisplayText()
		}
		fmt.Fprintln(r.out, ErrorStyle.Render(msg))
		fmt.Fprintln(r.out, DimStyle.Render("Type /retry to try again."))
	}
}

func (r *REPL) printAnswer(markdown string) {
	fmt.Fprintln(r.out, PromptStyle.Render(r.assistant+":"))
	fmt.Fprintln(r.out, r.render(markdown))
	fmt.Fprintln(r.out)
}

// Run reads lines with liner until EOF, Ctrl+C at the prompt, or /quit.
// Ctrl+C while a reply is outstanding cancels only that exchange.
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	r.Greet()
	for {
		input, err := line.Prompt(replPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		exCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		cont := r.Handle(exCtx, input)
		stop()
		if !cont || ctx.Err() != nil {
			return nil
		}
	}
}
