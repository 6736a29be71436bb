package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"elodie/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

type configInitOptions struct {
	path      string
	overwrite bool
}

func newConfigInitCommand() *cobra.Command {
	var opts configInitOptions
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Where to write the file (default ~/.elodie/config.toml)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func runConfigInit(out io.Writer, opts configInitOptions) error {
	target, err := configInitTarget(opts.path)
	if err != nil {
		return err
	}
	if !opts.overwrite {
		_, statErr := os.Stat(target)
		switch {
		case statErr == nil:
			return fmt.Errorf("%s already exists (pass --overwrite to replace it)", target)
		case !errors.Is(statErr, fs.ErrNotExist):
			return fmt.Errorf("check %s: %w", target, statErr)
		}
	}
	if err := config.CreateSample(target); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
	fmt.Fprintln(out, "Set metadata.provider to \"exif\" or \"none\" if exiftool is not installed, then run `elodie generate-db <library>`.")
	return nil
}

func configInitTarget(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve --path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and report the resolved paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			source := ctx.configPath
			if !ctx.configExists {
				source += " (missing; defaults were used)"
			}
			out := cmd.OutOrStdout()
			for _, line := range []string{
				renderStatusLine("Config file", statusInfo, source, false),
				renderStatusLine("Config directory", statusInfo, cfg.Paths.ConfigDir, false),
				renderStatusLine("Hash file", statusInfo, cfg.HashFilePath(""), false),
				renderStatusLine("Run history", statusInfo, yesNo(cfg.History.Enabled), false),
				renderStatusLine("Configuration", statusOK, "valid", false),
			} {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
