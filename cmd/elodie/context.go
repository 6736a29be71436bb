package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"elodie/internal/classifier"
	"elodie/internal/config"
	"elodie/internal/history"
	"elodie/internal/importer"
	"elodie/internal/logging"
	"elodie/internal/metadata"
	"elodie/internal/scan"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// newLogger builds a logger writing to the command's stderr so stdout only
// carries reports.
func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := logging.OptionsFromConfig(cfg)
	opts.Output = cmd.ErrOrStderr()
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			opts.Level = level
		}
	}
	logger, closer, err := logging.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, closer, nil
}

// session bundles the collaborators one scanning command needs.
type session struct {
	cfg          *config.Config
	logger       *slog.Logger
	orchestrator *importer.Orchestrator
	closers      []io.Closer
}

func (c *commandContext) openSession(ctx context.Context, cmd *cobra.Command, command string) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, closer, err := c.newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, closers: []io.Closer{closer}}

	provider, err := metadata.New(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	engine := scan.NewEngine(newClassifier(cfg), scan.Options{
		Workers:    cfg.WorkerCount(),
		BufferSize: cfg.BufferSize(),
		Logger:     logger,
		Progress:   newScanProgress(cmd.ErrOrStderr(), logger, command),
	})

	opts := []importer.Option{importer.WithLogger(logger)}
	if cfg.History.Enabled {
		journal, err := history.Open(ctx, cfg.HistoryDBPath())
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.String(logging.FieldPath, cfg.HistoryDBPath()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the history database or set history.enabled = false"),
				logging.String(logging.FieldImpact, "this run will not be journaled"),
			)
		} else {
			opts = append(opts, importer.WithJournal(journal))
			s.closers = append(s.closers, journal)
		}
	}

	s.orchestrator = importer.New(engine, provider, opts...)
	return s, nil
}

// Close releases the journal and log file in reverse order of acquisition.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newClassifier(cfg *config.Config) *classifier.Classifier {
	var opts []classifier.Option
	if cfg.Scan.SkipHidden {
		opts = append(opts, classifier.WithSkipHidden())
	}
	return classifier.New(cfg.Scan.Extensions, opts...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
