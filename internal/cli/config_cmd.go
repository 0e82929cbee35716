// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/knowhub/internal/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, opts)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigShow(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigPath(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one setting, e.g. server.url",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigGet(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one setting and save the config file",
			Long: `Change one setting and save the config file. List settings take
comma-separated values, e.g.

  knowhub config set documents.allowed_formats pdf,docx,txt`,
			Args: usageArgs(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSet(cmd, opts, args[0], args[1])
			},
		},
		newConfigInitCmd(opts),
	)
	return cmd
}

// configFilePath is the file config set and config init write to.
func configFilePath(opts *globalOptions) (string, error) {
	if opts.configPath != "" {
		return opts.configPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	if _, statErr := os.Stat(path); statErr != nil {
		// An existing JSON file is the active one when there is no TOML.
		if jsonPath, err := config.ConfigPathJSON(); err == nil {
			if _, err := os.Stat(jsonPath); err == nil {
				return jsonPath, nil
			}
		}
	}
	return path, nil
}

// =============================================================================
// SHOW / PATH / GET
// =============================================================================

func runConfigShow(cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.json {
		return NewJSONResponse("config show", cfg).Print(cmd.OutOrStdout())
	}

	out := cmd.OutOrStdout()
	section := ""
	for _, key := range config.GetAllKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		s, _, found := strings.Cut(key, ".")
		if !found {
			fmt.Fprintf(out, "%s%s\n", RenderLabel(key), ValueStyle.Render(formatValue(value)))
			continue
		}
		if s != section {
			section = s
			fmt.Fprintln(out, TitleStyle.Render("["+section+"]"))
		}
		fmt.Fprintf(out, "  %s%s\n", RenderLabel(key), ValueStyle.Render(formatValue(value)))
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, opts *globalOptions) error {
	path, err := configFilePath(opts)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if opts.json {
		return NewJSONResponse("config path", map[string]interface{}{
			"path":   path,
			"exists": exists,
		}).Print(cmd.OutOrStdout())
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	if !exists {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s file does not exist; run `knowhub config init` to create it\n", DimStyle.Render("Note:"))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, opts *globalOptions, key string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	value, err := cfg.Get(key)
	if err != nil {
		return &UsageError{Err: fmt.Errorf("%w (see `knowhub config show` for keys)", err)}
	}
	if opts.json {
		return NewJSONResponse("config get", map[string]interface{}{
			"key":   key,
			"value": value,
		}).Print(cmd.OutOrStdout())
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatValue(value))
	return nil
}

// formatValue renders a setting the way config set accepts it.
func formatValue(v interface{}) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(v)
}

// =============================================================================
// SET / INIT
// =============================================================================

func runConfigSet(cmd *cobra.Command, opts *globalOptions, key, value string) error {
	path, err := configFilePath(opts)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if cfg, err = config.LoadFromPath(path); err != nil {
			return &ConfigError{Path: path, Err: err}
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &UsageError{Err: err}
	}
	if err := saveConfig(cfg, path); err != nil {
		return err
	}

	if opts.json {
		return NewJSONResponse("config set", map[string]interface{}{
			"key":   key,
			"value": value,
			"path":  path,
		}).Print(cmd.OutOrStdout())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath(opts)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(path); statErr == nil && !force {
				return &UsageError{Err: fmt.Errorf("%s already exists (use --force to overwrite)", path)}
			} else if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
				return &ConfigError{Path: path, Err: statErr}
			}

			if err := saveConfig(config.Default(), path); err != nil {
				return err
			}
			if opts.json {
				return NewJSONResponse("config init", map[string]string{"path": path}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func saveConfig(cfg *config.Config, path string) error {
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}
