// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/foliochat/internal/config"
)

// Version information, set from main at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	model      string
	user       string

	// httpClient replaces outbound HTTP clients; set by tests.
	httpClient *http.Client
}

// NewRootCmd creates the foliochat command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "foliochat",
		Short: "A portfolio assistant that answers questions about one developer's work",
		Long: `foliochat answers questions about a developer's projects, skills and
experience. Answers are grounded in a digest of their public GitHub
repositories and an optional profile file.

Examples:
  foliochat chat
  foliochat ask "What has Sridharan built with Python?"
  foliochat digest --project Flood-Prediction`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to a config file (default ~/.foliochat/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVarP(&opts.model, "model", "m", "", "Model to request from the completion endpoint")
	pf.StringVarP(&opts.user, "user", "u", "", "GitHub user the digest describes")

	root.AddCommand(
		newChatCmd(opts),
		newAskCmd(opts),
		newDigestCmd(opts),
		newRenderCmd(),
		newContactCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
	}
	return ExitCode(err)
}

// loadConfig reads configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.model != "" {
		cfg.Chat.Model = o.model
	}
	if o.user != "" {
		cfg.GitHub.User = o.user
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// app loads configuration and wires an App. quietLogs is set by the
// full-screen chat.
func (o *rootOptions) app(quietLogs bool) (*App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, appOptions{quietLogs: quietLogs, httpClient: o.httpClient})
}
