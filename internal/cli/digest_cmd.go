// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/foliochat/internal/github"
	"github.com/jeranaias/foliochat/internal/render"
)

// digestResult is the --json payload of digest.
type digestResult struct {
	Owner        string               `json:"owner"`
	Text         string               `json:"text"`
	Project      string               `json:"project,omitempty"`
	Excerpt      string               `json:"excerpt,omitempty"`
	Repositories []github.RepoSummary `json:"repositories"`
	BuiltAt      *time.Time           `json:"built_at,omitempty"`
	Warning      string               `json:"warning,omitempty"`
}

func newDigestCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON  bool
		project string
		raw     bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Fetch and print the repository digest",
		Long: `Digest fetches the configured user's most recently updated repositories and
prints the summary the assistant is grounded in. With --project only the
excerpt for that repository is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(false)
			if err != nil {
				return err
			}
			defer app.Close()

			gh := app.Config.GitHub
			res := app.Digest.Refresh(cmd.Context(), gh.User, gh.MaxRepos)

			out := digestResult{Owner: gh.User, Text: app.Digest.Text()}
			if res.Err != nil {
				out.Warning = res.Err.Error()
				fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning:"), "could not refresh digest:", res.Err)
			}
			if d := res.Digest; d != nil {
				out.Repositories = d.Repositories
				built := d.BuiltAt.UTC()
				out.BuiltAt = &built
			}

			if project != "" {
				excerpt := app.Digest.ProjectExcerpt(project)
				if excerpt == "" {
					nf := &NotFoundError{Resource: "project", ID: project}
					if asJSON {
						if err := NewJSONErrorResponse("digest", nf, nil).Write(cmd.OutOrStdout()); err != nil {
							return err
						}
					}
					return nf
				}
				out.Project = project
				out.Excerpt = excerpt
			}

			w := cmd.OutOrStdout()
			text := out.Text
			if project != "" {
				text = out.Excerpt
			}
			switch {
			case asJSON:
				return NewJSONResponse("digest", out).Write(w)
			case raw || !IsStdoutTTY():
				_, err = fmt.Fprintln(w, text)
			default:
				_, err = fmt.Fprintln(w, render.Terminal(text, GetTerminalWidth()))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the digest as a JSON envelope")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Print only the excerpt for this repository")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal styling")
	cmd.MarkFlagsMutuallyExclusive("json", "raw")
	return cmd
}
