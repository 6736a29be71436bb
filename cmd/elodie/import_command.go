package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"elodie/internal/config"
	"elodie/internal/fingerprint"
	"elodie/internal/importer"
	"elodie/internal/logging"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var destination string
	var hashFile string
	var againstIndex bool
	var jsonOutput bool
	var tableOutput bool

	cmd := &cobra.Command{
		Use:   "import <SOURCE>",
		Short: "Hash media under SOURCE and print an enumerated report",
		Long: `Scan SOURCE for media files, hash each one and print one line per file:

  N. <path>: <sha256>[ (<capture time>)]

The fingerprint index is never written by import. Pass --against-index to
mark each file as new, known (already indexed) or a duplicate within this scan.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := resolveDestination(destination)
			if err != nil {
				return err
			}
			if hashFile != "" {
				if err := config.ValidateFileName(hashFile); err != nil {
					return fmt.Errorf("--hashfile: %w", err)
				}
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve source: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runCtx = logging.WithCommand(runCtx, "import")

			s, err := ctx.openSession(runCtx, cmd, "import")
			if err != nil {
				return err
			}
			defer s.Close()

			opts := importer.ImportOptions{Destination: dest}
			if againstIndex {
				store := fingerprint.NewFileStore(s.cfg.HashFilePath(hashFile))
				ix, err := fingerprint.Load(store)
				if err != nil {
					if errors.Is(err, fingerprint.ErrNoIndex) {
						return fmt.Errorf("%w (run `elodie generate-db` first)", err)
					}
					return err
				}
				opts.Index = ix
			}

			report, err := s.orchestrator.Import(runCtx, source, opts)
			if err != nil {
				return err
			}

			switch {
			case jsonOutput:
				return writeJSON(cmd, report)
			case tableOutput:
				fmt.Fprintln(cmd.OutOrStdout(), renderImportTable(report))
				return nil
			default:
				return report.WriteText(cmd.OutOrStdout())
			}
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "Destination directory for imported media")
	cmd.Flags().BoolVar(&againstIndex, "against-index", false, "Compare files with the persisted fingerprint index")
	cmd.Flags().StringVar(&hashFile, "hashfile", "", "Index file name inside the config directory (with --against-index)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().BoolVar(&tableOutput, "table", false, "Output the report as a table")
	_ = cmd.MarkFlagRequired("destination")
	cmd.MarkFlagsMutuallyExclusive("json", "table")
	return cmd
}

// resolveDestination expands the destination path. A missing directory is
// accepted; an existing non-directory is not.
func resolveDestination(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("--destination must not be empty")
	}
	dest, err := config.ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	info, err := os.Stat(dest)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("destination %s is not a directory", dest)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("check destination: %w", err)
	}
	return dest, nil
}

func renderImportTable(report *importer.Report) string {
	headers := []string{"#", "Path", "Digest", "Captured"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}
	if report.Compared {
		headers = append(headers, "Status")
		aligns = append(aligns, alignLeft)
	}
	rows := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		captured := row.CapturedAt
		switch {
		case captured != "":
		case report.Metadata != "":
			captured = importer.UnknownCaptureTime
		default:
			captured = "-"
		}
		line := []string{strconv.Itoa(row.Position), row.Path, row.Digest, captured}
		if report.Compared {
			line = append(line, row.Status)
		}
		rows = append(rows, line)
	}
	return renderTable(headers, rows, aligns)
}
