package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"elodie/internal/config"
	"elodie/internal/fingerprint"
	"elodie/internal/logging"
)

func newGenerateDBCommand(ctx *commandContext) *cobra.Command {
	var hashFile string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate-db <SOURCE>",
		Short: "Rebuild the fingerprint index from SOURCE",
		Long: `Hash every media file under SOURCE and replace the fingerprint index in the
config directory. The index is rebuilt from scratch; earlier content is not
merged. When several files share a digest the first path in sorted order wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			runCtx = logging.WithCommand(runCtx, "generate-db")

			s, err := ctx.openSession(runCtx, cmd, "generate-db")
			if err != nil {
				return err
			}
			defer s.Close()

			store := fingerprint.NewFileStore(s.cfg.HashFilePath(hashFile))
			summary, err := s.orchestrator.GenerateDB(runCtx, source, store)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, summary)
			}
			return summary.WriteText(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&hashFile, "hashfile", "", "Index file name inside the config directory (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")
	return cmd
}
