package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"elodie/internal/logging"
	"elodie/internal/scan"
)

const progressBucketPercent = 5

// newScanProgress reports hashing progress on w. Terminals get an interactive
// bar; anything else gets log lines sampled every few percent.
func newScanProgress(w io.Writer, logger *slog.Logger, phase string) scan.ProgressFunc {
	if isTerminal(w) {
		var bar *progressbar.ProgressBar
		return func(done, total int, _ string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(w),
					progressbar.OptionSetDescription(phase),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(30),
					progressbar.OptionThrottle(100*time.Millisecond),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(done)
			if done >= total {
				_ = bar.Finish()
			}
		}
	}

	sampler := logging.NewProgressSampler(progressBucketPercent)
	return func(done, total int, path string) {
		percent := logging.Percent(done, total)
		if !sampler.ShouldLog(percent, phase) {
			return
		}
		logger.Info("hashing progress",
			logging.Int("done", done),
			logging.Int("total", total),
			logging.String("percent", fmt.Sprintf("%.0f", percent)),
			logging.String(logging.FieldPath, path),
		)
	}
}
