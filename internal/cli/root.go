// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/knowhub/internal/ui/app"
	"github.com/jeranaias/knowhub/internal/ui/styles"
)

// BuildInfo describes the running binary. Set via ldflags in main.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	server     string
	json       bool

	version string
}

// =============================================================================
// EXECUTION
// =============================================================================

// Execute runs the command line and returns the process exit code. Errors
// are displayed once here; commands only return them.
func Execute(ctx context.Context, info BuildInfo, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, opts := newRootCommand(info)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return ExitSuccess
	}
	DisplayError(stdout, stderr, commandName(cmd), err, opts.json)
	return ExitCode(err)
}

// commandName returns the command path without the binary name, e.g.
// "docs upload".
func commandName(cmd *cobra.Command) string {
	if cmd == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()))
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

func newRootCommand(info BuildInfo) (*cobra.Command, *globalOptions) {
	opts := &globalOptions{version: info.Version}
	if opts.version == "" {
		opts.version = "dev"
	}

	cmd := &cobra.Command{
		Use:   "knowhub",
		Short: "Terminal client for the knowledge hub",
		Long: `knowhub signs you in to a knowledge service, uploads documents to it and
answers questions about them.

Run without arguments to open the terminal UI.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.knowhub/config.toml)")
	pf.StringVar(&opts.server, "server", "", "knowledge service base URL (overrides server.url)")
	pf.BoolVar(&opts.json, "json", false, "write machine-readable JSON to stdout")

	cmd.AddCommand(
		newLoginCmd(opts),
		newSignupCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newDocsCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts, info),
	)
	return cmd, opts
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// runTUI opens the terminal UI. It needs a terminal on both ends.
func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	if !isTerminal(cmd.InOrStdin()) || !isTerminal(cmd.OutOrStdout()) {
		return &TTYRequiredError{Operation: "open the terminal UI"}
	}

	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer e.close()

	return app.Run(app.Deps{
		Config:   e.cfg,
		Session:  e.store,
		Registry: e.registry,
		Engine:   e.engine,
		Theme:    styles.NewTheme(e.cfg.UI.Theme),
		Logger:   e.logger,
	})
}
