package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"elodie/internal/fingerprint"
	"elodie/internal/history"
	"elodie/internal/logging"
	"elodie/internal/metadata"
	"elodie/internal/scan"
)

// Journal records finished runs. *history.Journal satisfies it.
type Journal interface {
	Record(ctx context.Context, run history.Run) error
}

// Scanner produces file records for a root directory. *scan.Engine
// satisfies it.
type Scanner interface {
	Run(ctx context.Context, root string) (*scan.Result, error)
	Workers() int
}

// Orchestrator composes the scan engine, the metadata provider and the
// fingerprint index into the import and generate-db operations.
type Orchestrator struct {
	scanner  Scanner
	provider metadata.Provider
	journal  Journal
	logger   *slog.Logger
	newID    func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New builds an Orchestrator. A nil provider disables capture timestamps.
func New(scanner Scanner, provider metadata.Provider, opts ...Option) *Orchestrator {
	if provider == nil {
		provider = metadata.Nop{}
	}
	o := &Orchestrator{
		scanner:  scanner,
		provider: provider,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "importer")
	return o
}

// ImportOptions tunes an import run.
type ImportOptions struct {
	// Destination is echoed in the report; files are not copied.
	Destination string
	// Index, when set, classifies each row against previously indexed content.
	// It is only read.
	Index *fingerprint.Index
}

// Import scans source and returns one report row per hashed file, ordered by
// path. The persisted index is never written.
func (o *Orchestrator) Import(ctx context.Context, source string, opts ImportOptions) (*Report, error) {
	runID := o.newID()
	ctx = logging.WithScanID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	started := time.Now()
	result, err := o.scanner.Run(ctx, source)
	if err != nil {
		o.journalFailure(ctx, runID, "import", source, opts.Destination, started, err)
		return nil, err
	}

	records := append([]scan.FileRecord(nil), result.Records...)
	scan.SortByPath(records)
	records = o.attachCaptureTimes(ctx, records, logger)
	if err := ctx.Err(); err != nil {
		o.journalFailure(ctx, runID, "import", source, opts.Destination, started, err)
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		Source:      result.Root,
		Destination: opts.Destination,
		Rows:        make([]Row, 0, len(records)),
		Failures:    failurePaths(result),
		EntryErrors: len(result.EntryErrors),
		BytesHashed: result.BytesHashed,
		StartedAt:   started,
		Compared:    opts.Index != nil,
		Metadata:    o.metadataName(),
	}
	seen := make(map[string]string, len(records))
	for i, rec := range records {
		row := Row{
			Position:   i + 1,
			Path:       rec.Path,
			Digest:     rec.Digest,
			CapturedAt: rec.CapturedAt,
		}
		if first, dup := seen[rec.Digest]; dup {
			report.Duplicates++
			row.DuplicateOf = first
		} else {
			seen[rec.Digest] = rec.Path
		}
		if opts.Index != nil {
			row.Status, row.KnownPath = classify(opts.Index, row)
		}
		report.Rows = append(report.Rows, row)
	}
	report.Duration = time.Since(started)

	logger.Info("import scan complete",
		logging.String("source", report.Source),
		logging.String("destination", report.Destination),
		logging.Int("files", len(report.Rows)),
		logging.Int("duplicates", report.Duplicates),
		logging.Int("failures", len(report.Failures)),
	)
	o.journalRun(ctx, history.Run{
		ID:          runID,
		Command:     "import",
		Source:      report.Source,
		Target:      opts.Destination,
		Status:      history.StatusSucceeded,
		Files:       len(report.Rows),
		Unique:      len(seen),
		Duplicates:  report.Duplicates,
		Failures:    len(report.Failures),
		BytesHashed: report.BytesHashed,
		StartedAt:   started,
		Duration:    report.Duration,
	})
	return report, nil
}

func classify(ix *fingerprint.Index, row Row) (string, string) {
	if known, ok := ix.Lookup(row.Digest); ok {
		return StatusKnown, known
	}
	if row.DuplicateOf != "" {
		return StatusDuplicate, ""
	}
	return StatusNew, ""
}

// metadataName reports the active provider, or "" when lookups are disabled.
func (o *Orchestrator) metadataName() string {
	if _, disabled := o.provider.(metadata.Nop); disabled {
		return ""
	}
	return o.provider.Name()
}

// attachCaptureTimes queries the metadata provider on a pool the size of
// the scan pool. Provider failures leave the timestamp empty.
func (o *Orchestrator) attachCaptureTimes(ctx context.Context, records []scan.FileRecord, logger *slog.Logger) []scan.FileRecord {
	if o.metadataName() == "" || len(records) == 0 {
		return records
	}
	workers := o.scanner.Workers()
	if workers <= 0 {
		workers = 1
	}

	out := make([]scan.FileRecord, len(records))
	copy(out, records)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				ts, err := o.provider.CaptureTime(ctx, out[idx].Path)
				if err != nil {
					logger.Debug("capture time unavailable",
						logging.String(logging.FieldPath, out[idx].Path),
						logging.String("provider", o.provider.Name()),
						logging.Error(err),
					)
					continue
				}
				out[idx] = out[idx].WithCapturedAt(ts)
			}
		}()
	}
feed:
	for i := range out {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return out
}

// GenerateDB scans source, builds a fresh index from the results and
// atomically replaces the content of store. Prior store content is never
// merged.
func (o *Orchestrator) GenerateDB(ctx context.Context, source string, store *fingerprint.Store) (*Summary, error) {
	if store == nil {
		return nil, errors.New("generate-db: nil store")
	}
	runID := o.newID()
	ctx = logging.WithScanID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	started := time.Now()
	result, err := o.scanner.Run(ctx, source)
	if err != nil {
		o.journalFailure(ctx, runID, "generate-db", source, store.Location(), started, err)
		return nil, err
	}

	// Input order decides which path wins for duplicate content, so sort first
	// to keep the outcome independent of worker scheduling.
	records := append([]scan.FileRecord(nil), result.Records...)
	scan.SortByPath(records)
	ix, dups := fingerprint.Build(records)

	if err := ctx.Err(); err != nil {
		o.journalFailure(ctx, runID, "generate-db", source, store.Location(), started, err)
		return nil, err
	}
	if err := ix.Persist(store); err != nil {
		o.journalFailure(ctx, runID, "generate-db", source, store.Location(), started, err)
		return nil, err
	}

	summary := &Summary{
		RunID:       runID,
		Source:      result.Root,
		Store:       store.Location(),
		Files:       len(records),
		Unique:      ix.Len(),
		Duplicates:  dups,
		Failures:    failurePaths(result),
		EntryErrors: len(result.EntryErrors),
		BytesHashed: result.BytesHashed,
		StartedAt:   started,
		Duration:    time.Since(started),
	}
	logger.Info("fingerprint index written",
		logging.String("store", summary.Store),
		logging.Int("entries", summary.Unique),
		logging.Int("duplicates", len(dups)),
		logging.Int("failures", len(summary.Failures)),
	)
	o.journalRun(ctx, history.Run{
		ID:          runID,
		Command:     "generate-db",
		Source:      summary.Source,
		Target:      summary.Store,
		Status:      history.StatusSucceeded,
		Files:       summary.Files,
		Unique:      summary.Unique,
		Duplicates:  len(dups),
		Failures:    len(summary.Failures),
		BytesHashed: summary.BytesHashed,
		StartedAt:   started,
		Duration:    summary.Duration,
	})
	return summary, nil
}

func failurePaths(result *scan.Result) []string {
	out := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		out = append(out, f.Path)
	}
	return out
}

func (o *Orchestrator) journalFailure(ctx context.Context, id, command, source, target string, started time.Time, cause error) {
	o.journalRun(ctx, history.Run{
		ID:        id,
		Command:   command,
		Source:    source,
		Target:    target,
		Status:    history.StatusFailed,
		Error:     cause.Error(),
		StartedAt: started,
		Duration:  time.Since(started),
	})
}

// journalRun never fails the operation; a broken journal only costs history.
func (o *Orchestrator) journalRun(ctx context.Context, run history.Run) {
	if o.journal == nil {
		return
	}
	// Record even when the run itself was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := o.journal.Record(ctx, run); err != nil {
		logging.WarnWithContext(o.logger, "history record failed", "history_record_failed",
			logging.String("run_id", run.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("check the history database for run %s", run.ID)),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}
