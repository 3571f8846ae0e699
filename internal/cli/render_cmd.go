// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/foliochat/internal/render"
)

func newRenderCmd() *cobra.Command {
	var (
		codeStyle string
		terminal  bool
		width     int
	)

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render markdown the way answers are rendered",
		Long: `Render reads markdown from a file (or stdin when no file or "-" is given)
and prints the sanitized HTML the chat would display. With --terminal the
markdown is styled for the terminal instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				src []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				src, err = io.ReadAll(cmd.InOrStdin())
			} else {
				src, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read markdown: %w", err)
			}

			w := cmd.OutOrStdout()
			if terminal {
				if width <= 0 {
					width = GetTerminalWidth()
				}
				_, err = fmt.Fprintln(w, render.Terminal(string(src), width))
				return err
			}

			r := render.NewHTML(render.WithCodeStyle(codeStyle))
			_, err = fmt.Fprintln(w, r.Render(string(src)))
			return err
		},
	}

	cmd.Flags().StringVar(&codeStyle, "style", "", "Chroma style for code blocks (default github)")
	cmd.Flags().BoolVar(&terminal, "terminal", false, "Style for the terminal instead of HTML")
	cmd.Flags().IntVarP(&width, "width", "w", 0, "Wrap width for --terminal (default terminal width)")
	return cmd
}
