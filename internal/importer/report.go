package importer

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"elodie/internal/fingerprint"
)

// Row statuses assigned when an import is compared against an index.
const (
	StatusNew       = "new"
	StatusKnown     = "known"
	StatusDuplicate = "duplicate"
)

// Row is one enumerated import report line.
type Row struct {
	Position    int    `json:"n"`
	Path        string `json:"path"`
	Digest      string `json:"digest"`
	CapturedAt  string `json:"captured_at,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Status      string `json:"status,omitempty"`
	KnownPath   string `json:"known_path,omitempty"`
}

// Report is the result of an import run.
type Report struct {
	RunID       string   `json:"run_id"`
	Source      string   `json:"source"`
	Destination string   `json:"destination,omitempty"`
	Rows        []Row    `json:"rows"`
	Duplicates  int      `json:"duplicates"`
	Failures    []string `json:"failures"`
	EntryErrors int      `json:"entry_errors"`
	BytesHashed int64    `json:"bytes_hashed"`
	Compared    bool     `json:"compared_with_index"`
	// Metadata names the capture-time provider; empty when lookups are off.
	Metadata  string        `json:"metadata_provider,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// UnknownCaptureTime marks a row whose capture time lookup failed.
const UnknownCaptureTime = "unknown"

// WriteText renders the enumerated report: one "N. path: digest" line per
// row, followed by the capture time in parentheses. When lookups are off no
// time column is printed.
func (r *Report) WriteText(w io.Writer) error {
	for _, row := range r.Rows {
		line := fmt.Sprintf("%d. %s: %s", row.Position, row.Path, row.Digest)
		switch {
		case row.CapturedAt != "":
			line += " (" + row.CapturedAt + ")"
		case r.Metadata != "":
			line += " (" + UnknownCaptureTime + ")"
		}
		if row.Status != "" {
			line += " [" + row.Status + "]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// StatusCounts tallies rows per status.
func (r *Report) StatusCounts() map[string]int {
	counts := make(map[string]int)
	for _, row := range r.Rows {
		if row.Status != "" {
			counts[row.Status]++
		}
	}
	return counts
}

// Summary is the result of a generate-db run.
type Summary struct {
	RunID       string                  `json:"run_id"`
	Source      string                  `json:"source"`
	Store       string                  `json:"store"`
	Files       int                     `json:"files"`
	Unique      int                     `json:"unique_digests"`
	Duplicates  []fingerprint.Duplicate `json:"duplicates"`
	Failures    []string                `json:"failures"`
	EntryErrors int                     `json:"entry_errors"`
	BytesHashed int64                   `json:"bytes_hashed"`
	StartedAt   time.Time               `json:"started_at"`
	Duration    time.Duration           `json:"duration"`
}

// WriteText renders a short human summary.
func (s *Summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Wrote %s\n  files:          %d\n  unique digests: %d\n  duplicates:     %d\n  failures:       %d\n  hashed:         %s in %s\n",
		s.Store,
		s.Files,
		s.Unique,
		len(s.Duplicates),
		len(s.Failures),
		humanize.IBytes(uint64(s.BytesHashed)),
		s.Duration.Round(time.Millisecond),
	)
	return err
}
