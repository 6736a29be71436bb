package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"elodie/internal/classifier"
	"elodie/internal/hasher"
	"elodie/internal/logging"
)

// ErrRootUnreadable marks the only fatal scan failure: the root cannot be
// opened or listed.
var ErrRootUnreadable = errors.New("scan root unreadable")

// EntryError records a directory entry that could not be stat'ed or listed
// during traversal. Entries that fail are skipped.
type EntryError struct {
	Path  string
	Cause error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("read entry %s: %v", e.Path, e.Cause)
}

func (e *EntryError) Unwrap() error { return e.Cause }

// ProgressFunc observes hashing progress. It is called from a single
// goroutine, once per finished candidate.
type ProgressFunc func(done, total int, path string)

// Options configures an Engine.
type Options struct {
	Workers    int
	BufferSize int
	Logger     *slog.Logger
	Progress   ProgressFunc
}

// Engine walks a directory tree and hashes classifier-accepted files on a
// bounded worker pool.
type Engine struct {
	classifier *classifier.Classifier
	workers    int
	bufferSize int
	logger     *slog.Logger
	progress   ProgressFunc
}

// NewEngine constructs an Engine. Workers <= 0 falls back to the number of
// available CPUs.
func NewEngine(c *classifier.Classifier, opts Options) *Engine {
	if c == nil {
		c = classifier.New(nil)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = hasher.DefaultBufferSize
	}
	return &Engine{
		classifier: c,
		workers:    workers,
		bufferSize: bufferSize,
		logger:     logging.NewComponentLogger(opts.Logger, "scan"),
		progress:   opts.Progress,
	}
}

// Workers reports the pool size the engine runs with.
func (e *Engine) Workers() int { return e.workers }

// Result is everything one scan produced. Records are unordered; use
// SortByPath before presenting them.
type Result struct {
	Root        string
	Records     []FileRecord
	Failures    []*hasher.HashFailure
	EntryErrors []*EntryError
	Candidates  int
	BytesHashed int64
	Workers     int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns the wall-clock time of the scan.
func (r *Result) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run scans root. Per-file failures are collected in the Result; the error is
// non-nil only when the root is unreadable or ctx is cancelled, in which case
// no partial Result is returned.
func (e *Engine) Run(ctx context.Context, root string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.WithContext(ctx, e.logger)

	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	result := &Result{Root: root, Workers: e.workers, StartedAt: time.Now()}

	candidates, entryErrs, err := e.walk(ctx, root, logger)
	if err != nil {
		return nil, err
	}
	result.EntryErrors = entryErrs
	result.Candidates = len(candidates)
	logger.Debug("walk complete",
		logging.String("root", root),
		logging.Int("candidates", len(candidates)),
		logging.Int("entry_errors", len(entryErrs)),
	)

	if err := e.hashAll(ctx, candidates, result, logger); err != nil {
		return nil, err
	}
	result.FinishedAt = time.Now()

	logger.Info("scan complete",
		logging.String("root", root),
		logging.Int("files", len(result.Records)),
		logging.Int("failures", len(result.Failures)),
		logging.Int64("bytes", result.BytesHashed),
		logging.Duration("duration", result.Duration()),
	)
	return result, nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: empty path", ErrRootUnreadable)
	}
	info, err := os.Lstat(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	// A symlinked root is followed once; links below it are not.
	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
		}
		if info, err = os.Stat(resolved); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
		}
		root = resolved
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}
	if err := unix.Access(root, unix.R_OK|unix.X_OK); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	return root, nil
}

func (e *Engine) walk(ctx context.Context, root string, logger *slog.Logger) ([]string, []*EntryError, error) {
	var (
		candidates []string
		entryErrs  []*EntryError
	)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
			}
			entryErrs = append(entryErrs, &EntryError{Path: path, Cause: err})
			logging.WarnWithContext(logger, "skipping unreadable entry", "entry_unreadable",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the entry"),
				logging.String(logging.FieldImpact, "entry excluded from scan"),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && e.classifier.SkipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if e.classifier.Accept(classifier.FromDirEntry(path, d)) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}
	return candidates, entryErrs, nil
}

type hashResult struct {
	record FileRecord
	err    error
}

func (e *Engine) hashAll(ctx context.Context, candidates []string, result *Result, logger *slog.Logger) error {
	jobs := make(chan string, e.workers*2)
	results := make(chan hashResult, e.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, results)
	}

	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		e.collect(results, len(candidates), result, logger)
	}()

feed:
	for _, path := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- path:
		}
	}

	close(jobs)
	wg.Wait()
	close(results)
	collectWg.Wait()

	return ctx.Err()
}

// worker owns exactly one hasher for its lifetime.
func (e *Engine) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- hashResult) {
	defer wg.Done()
	h := hasher.New(e.bufferSize)
	for path := range jobs {
		if ctx.Err() != nil {
			continue
		}
		digest, size, err := h.HashFile(path)
		if err != nil {
			results <- hashResult{record: FileRecord{Path: path}, err: err}
			continue
		}
		results <- hashResult{record: FileRecord{Path: path, Digest: digest, Size: size}}
	}
}

func (e *Engine) collect(results <-chan hashResult, total int, result *Result, logger *slog.Logger) {
	done := 0
	for r := range results {
		done++
		if r.err != nil {
			var failure *hasher.HashFailure
			if !errors.As(r.err, &failure) {
				failure = &hasher.HashFailure{Path: r.record.Path, Cause: r.err}
			}
			result.Failures = append(result.Failures, failure)
			logging.WarnWithContext(logger, "hash failed", "hash_failed",
				logging.String(logging.FieldPath, failure.Path),
				logging.Error(failure.Cause),
				logging.String(logging.FieldErrorHint, "check the file is readable"),
				logging.String(logging.FieldImpact, "file excluded from results"),
			)
		} else {
			result.Records = append(result.Records, r.record)
			result.BytesHashed += r.record.Size
		}
		if e.progress != nil {
			e.progress(done, total, r.record.Path)
		}
	}
	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Path < result.Failures[j].Path
	})
}
