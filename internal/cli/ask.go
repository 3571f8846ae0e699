// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/foliochat/internal/orchestrator"
	"github.com/jeranaias/foliochat/internal/render"
)

// askResult is the --json payload of ask.
type askResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	HTML     string `json:"html,omitempty"`
	Attempts int    `json:"attempts"`
	Kind     string `json:"error_kind,omitempty"`
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON bool
		asHTML bool
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a single question and print the answer",
		Long: `Ask sends one question through the same pipeline as the chat, including
the off-topic guard, rate limiting and automatic retries, and prints the
answer.

Examples:
  foliochat ask "Which languages does Sridharan use most?"
  foliochat ask --html "Describe the project Flood-Prediction" > answer.html
  foliochat ask --json "List all the repos"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(false)
			if err != nil {
				return err
			}
			defer app.Close()

			question := strings.Join(args, " ")
			orch := app.NewOrchestrator(nil)
			out, err := orch.Send(cmd.Context(), question)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out.Status == orchestrator.StatusFailed {
				exErr := &ExchangeError{Err: out.Err}
				if asJSON {
					res := askResult{Question: question, Attempts: out.Attempts}
					if out.Err != nil {
						res.Kind = out.Err.Kind.String()
					}
					if err := NewJSONErrorResponse("ask", exErr, res).Write(w); err != nil {
						return err
					}
				}
				return exErr
			}

			switch {
			case asJSON:
				return NewJSONResponse("ask", askResult{
					Question: question,
					Answer:   out.Reply,
					HTML:     render.HTML(out.Reply),
					Attempts: out.Attempts,
				}).Write(w)
			case asHTML:
				_, err = fmt.Fprintln(w, render.HTML(out.Reply))
			case raw || !IsStdoutTTY():
				_, err = fmt.Fprintln(w, out.Reply)
			default:
				_, err = fmt.Fprintln(w, render.Terminal(out.Reply, GetTerminalWidth()))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as a JSON envelope")
	cmd.Flags().BoolVar(&asHTML, "html", false, "Print the answer as sanitized HTML")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown answer without terminal styling")
	cmd.MarkFlagsMutuallyExclusive("json", "html", "raw")
	return cmd
}
