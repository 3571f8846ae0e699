// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := currentVersion()
			w := cmd.OutOrStdout()
			if asJSON {
				return NewJSONResponse("version", v).Write(w)
			}
			fmt.Fprintf(w, "%s %s\n", TitleStyle.Render("foliochat"), v.Version)
			fmt.Fprintln(w, RenderLabel("Commit:"), v.GitCommit)
			fmt.Fprintln(w, RenderLabel("Built:"), v.BuildDate)
			fmt.Fprintln(w, RenderLabel("Go:"), v.GoVersion)
			fmt.Fprintln(w, RenderLabel("Platform:"), v.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as a JSON envelope")
	return cmd
}
