// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/foliochat/internal/contact"
)

func newContactCmd(opts *rootOptions) *cobra.Command {
	var sub contact.Submission

	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Send a message to the portfolio owner",
		Long: `Contact relays a message through EmailJS. The service id, template id and
public key come from the [contact] config section or the EMAILJS_SERVICE_ID,
EMAILJS_TEMPLATE_ID and EMAILJS_PUBLIC_KEY variables.

Example:
  foliochat contact --name Ada --email ada@example.com --message "Hello!"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sub.Validate(); err != nil {
				return err
			}

			app, err := opts.app(false)
			if err != nil {
				return err
			}
			defer app.Close()

			if !app.Contact.Configured() {
				return contact.ErrNotConfigured
			}
			if err := app.Contact.Send(cmd.Context(), sub); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Message sent."))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sub.Name, "name", "", "Your name")
	f.StringVar(&sub.Email, "email", "", "Your email address")
	f.StringVar(&sub.Phone, "phone", "", "Your phone number (optional)")
	f.StringVar(&sub.Message, "message", "", "The message")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
