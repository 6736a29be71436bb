package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"elodie/internal/preflight"
)

type statusView struct {
	ConfigPath   string             `json:"config_path"`
	ConfigExists bool               `json:"config_exists"`
	ConfigDir    string             `json:"config_dir"`
	HashFile     string             `json:"hash_file"`
	HistoryDB    string             `json:"history_db,omitempty"`
	Provider     string             `json:"metadata_provider"`
	Workers      int                `json:"workers"`
	Extensions   []string           `json:"extensions"`
	Checks       []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			view := statusView{
				ConfigPath:   ctx.configPath,
				ConfigExists: ctx.configExists,
				ConfigDir:    cfg.Paths.ConfigDir,
				HashFile:     cfg.HashFilePath(""),
				Provider:     cfg.Metadata.Provider,
				Workers:      cfg.WorkerCount(),
				Extensions:   cfg.Scan.Extensions,
				Checks:       preflight.RunAll(cmd.Context(), cfg),
			}
			if cfg.History.Enabled {
				view.HistoryDB = cfg.HistoryDBPath()
			}

			if jsonOutput {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configDetail := view.ConfigPath
			if !view.ConfigExists {
				configDetail += " (not found, using defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, configDetail, colorize))
			fmt.Fprintln(out, renderStatusLine("Hash file", statusInfo, view.HashFile, colorize))
			history := "disabled"
			if view.HistoryDB != "" {
				history = view.HistoryDB
			}
			fmt.Fprintln(out, renderStatusLine("Run history", statusInfo, history, colorize))
			fmt.Fprintln(out, renderStatusLine("Metadata provider", statusInfo, view.Provider, colorize))
			fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, strconv.Itoa(view.Workers), colorize))
			fmt.Fprintln(out, renderStatusLine("Extensions", statusInfo, formatExtensions(view.Extensions), colorize))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, check := range view.Checks {
				fmt.Fprintln(out, renderStatusLine(check.Name, checkKind(check.Passed), check.Detail, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func formatExtensions(exts []string) string {
	if len(exts) == 0 {
		return "all regular files"
	}
	return strings.Join(exts, ", ")
}
