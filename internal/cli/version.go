// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(opts *globalOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := VersionData{
				Version:   opts.version,
				GitCommit: orUnknown(info.GitCommit),
				BuildDate: orUnknown(info.BuildDate),
				GoVersion: runtime.Version(),
				OS:        runtime.GOOS,
				Arch:      runtime.GOARCH,
			}
			if opts.json {
				return NewJSONResponse("version", data).Print(cmd.OutOrStdout())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", TitleStyle.Render("knowhub"), data.Version)
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Commit"), data.GitCommit)
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Built"), data.BuildDate)
			fmt.Fprintf(out, "%s%s %s/%s\n", RenderLabel("Go"), data.GoVersion, data.OS, data.Arch)
			return nil
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
