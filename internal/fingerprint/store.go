package fingerprint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gofrs/flock"

	"elodie/internal/hasher"
)

var (
	// ErrNoIndex reports that the store has never been written.
	ErrNoIndex = errors.New("fingerprint index not found")
	// ErrCorruptIndex classifies every CorruptIndexError.
	ErrCorruptIndex = errors.New("corrupt fingerprint index")
	// ErrPersistFailure wraps errors from an atomic write that did not land.
	ErrPersistFailure = errors.New("persist fingerprint index")
)

// CorruptIndexError describes why a persisted index was rejected.
type CorruptIndexError struct {
	Store  string
	Reason string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt fingerprint index %s: %s", e.Store, e.Reason)
}

// Is lets errors.Is(err, ErrCorruptIndex) match any CorruptIndexError.
func (e *CorruptIndexError) Is(target error) bool { return target == ErrCorruptIndex }

// Store is the durable home of one index file.
type Store struct {
	fs       billy.Filesystem
	name     string
	location string
	lock     *flock.Flock
}

// NewStore binds a store to name inside fsys. No cross-process lock is taken.
func NewStore(fsys billy.Filesystem, name string) *Store {
	return &Store{fs: fsys, name: name, location: name}
}

// NewMemoryStore returns a store backed by an in-memory filesystem.
func NewMemoryStore(name string) *Store {
	return NewStore(memfs.New(), name)
}

// NewFileStore returns a store for the index file at path on the local
// filesystem. Reads and writes are serialized across processes with an
// advisory lock on a sibling ".lock" file.
func NewFileStore(path string) *Store {
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	return &Store{
		fs:       osfs.New(dir),
		name:     name,
		location: filepath.Clean(path),
		lock:     flock.New(filepath.Clean(path) + ".lock"),
	}
}

// Location identifies the store in diagnostics.
func (s *Store) Location() string { return s.location }

// Exists reports whether an index has been persisted.
func (s *Store) Exists() (bool, error) {
	_, err := s.fs.Stat(s.name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", s.location, err)
	}
}

func (s *Store) lockExclusive() (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
		return nil, err
	}
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) lockShared() (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	if _, err := os.Stat(filepath.Dir(s.lock.Path())); err != nil {
		// Nothing to guard if the directory does not exist yet.
		return func() {}, nil
	}
	if err := s.lock.RLock(); err != nil {
		// A read-only config directory cannot hold a new lock file; the
		// index itself is still readable.
		if _, statErr := os.Stat(s.lock.Path()); errors.Is(statErr, os.ErrNotExist) {
			return func() {}, nil
		}
		return nil, fmt.Errorf("lock %s: %w", s.lock.Path(), err)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Load reads and validates a persisted index. A missing store yields
// ErrNoIndex; anything unparsable yields a CorruptIndexError.
func Load(s *Store) (*Index, error) {
	unlock, err := s.lockShared()
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := util.ReadFile(s.fs, s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoIndex, s.location)
		}
		return nil, fmt.Errorf("read %s: %w", s.location, err)
	}
	entries, reason := decodeEntries(data)
	if reason != "" {
		return nil, &CorruptIndexError{Store: s.location, Reason: reason}
	}
	return &Index{entries: entries}, nil
}

// decodeEntries parses a flat JSON object of digest to path. It walks the
// token stream because encoding/json silently keeps the last of duplicate
// keys.
func decodeEntries(data []byte) (map[string]string, string) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, "not valid JSON: " + err.Error()
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, "top-level value is not an object"
	}
	entries := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, "not valid JSON: " + err.Error()
		}
		key, _ := tok.(string)
		if !hasher.IsDigest(key) {
			return nil, fmt.Sprintf("malformed digest key %q", key)
		}
		if _, dup := entries[key]; dup {
			return nil, fmt.Sprintf("duplicate digest key %s", key)
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, "not valid JSON: " + err.Error()
		}
		path, ok := tok.(string)
		if !ok || path == "" {
			return nil, fmt.Sprintf("digest %s does not map to a path", key)
		}
		entries[key] = path
	}
	if _, err := dec.Token(); err != nil {
		return nil, "not valid JSON: " + err.Error()
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, "trailing data after index object"
	}
	return entries, ""
}

// Persist replaces the store content with ix. The document is written to a
// temporary file in the same directory and renamed over the destination, so a
// failure leaves the previous content untouched.
func (ix *Index) Persist(s *Store) error {
	data, err := encodeEntries(ix)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistFailure, s.location, err)
	}

	unlock, err := s.lockExclusive()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistFailure, s.location, err)
	}
	defer unlock()

	dir := filepath.Dir(s.name)
	if dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPersistFailure, s.location, err)
		}
	}
	tmp, err := s.fs.TempFile(dir, "."+filepath.Base(s.name)+".tmp-")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistFailure, s.location, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %s: write: %w", ErrPersistFailure, s.location, err)
	}
	if syncer, ok := tmp.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("%w: %s: sync: %w", ErrPersistFailure, s.location, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: close: %w", ErrPersistFailure, s.location, err)
	}
	if ch, ok := s.fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, 0o644)
	}
	if err := s.fs.Rename(tmpName, s.name); err != nil {
		return fmt.Errorf("%w: %s: rename: %w", ErrPersistFailure, s.location, err)
	}
	committed = true
	return nil
}

// encodeEntries renders the index as an indented JSON object with keys in
// lexicographic order. JSON strings cannot carry arbitrary bytes, so a path
// that is not valid UTF-8 is refused instead of being rewritten.
func encodeEntries(ix *Index) ([]byte, error) {
	for _, d := range ix.Digests() {
		if path := ix.entries[d]; !utf8.ValidString(path) {
			return nil, fmt.Errorf("path %q is not valid UTF-8", path)
		}
	}
	data, err := json.MarshalIndent(ix.Entries(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
