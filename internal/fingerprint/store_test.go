package fingerprint

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func sampleIndex() *Index {
	ix := New()
	ix.Add(digest('b'), "/photos/b.jpg")
	ix.Add(digest('a'), "/photos/a.jpg")
	ix.Add(digest('c'), "/photos/sub dir/c \"quoted\".png")
	return ix
}

func TestPersistLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore("hash.json")
	ix := sampleIndex()
	if err := ix.Persist(store); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	loaded, err := Load(store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Equal(ix) {
		t.Fatalf("round trip mismatch: %v vs %v", loaded.Entries(), ix.Entries())
	}
}

func TestPersistEmptyIndexRoundTrip(t *testing.T) {
	store := NewMemoryStore("hash.json")
	if err := New().Persist(store); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	loaded, err := Load(store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 0 {
		t.Fatalf("expected empty index, got %d", loaded.Len())
	}
}

func TestPersistWritesSortedKeys(t *testing.T) {
	fsys := memfs.New()
	store := NewStore(fsys, "hash.json")
	if err := sampleIndex().Persist(store); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	data, err := util.ReadFile(fsys, "hash.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	a := strings.Index(text, digest('a'))
	b := strings.Index(text, digest('b'))
	c := strings.Index(text, digest('c'))
	if a < 0 || !(a < b && b < c) {
		t.Fatalf("expected lexicographic key order, got:\n%s", text)
	}
	assertNoTempFiles(t, fsys)
}

func TestFileStoreRoundTripAndOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elodie", "hash.json")
	store := NewFileStore(path)

	if ok, err := store.Exists(); err != nil || ok {
		t.Fatalf("expected missing store, got %v / %v", ok, err)
	}
	if _, err := Load(store); !errors.Is(err, ErrNoIndex) {
		t.Fatalf("expected ErrNoIndex, got %v", err)
	}

	if err := sampleIndex().Persist(store); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	replacement := New()
	replacement.Add(digest('d'), "/photos/d.jpg")
	if err := replacement.Persist(store); err != nil {
		t.Fatalf("Persist replacement: %v", err)
	}

	loaded, err := Load(store)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Equal(replacement) {
		t.Fatalf("expected full overwrite, got %v", loaded.Entries())
	}
	if store.Location() != path {
		t.Fatalf("Location = %q, want %q", store.Location(), path)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Fatalf("expected lock file beside index: %v", err)
	}
}

func assertNoTempFiles(t *testing.T, fsys billy.Filesystem) {
	t.Helper()
	entries, err := fsys.ReadDir(".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temporary file %s left behind", e.Name())
		}
	}
}

func TestLoadRejectsCorruptDocuments(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"empty", "", "not valid JSON"},
		{"truncated", `{"` + digest('a') + `": "/a.jpg"`, "not valid JSON"},
		{"array", `["/a.jpg"]`, "not an object"},
		{"null", `null`, "not an object"},
		{"duplicate key", `{"` + digest('a') + `": "/a.jpg", "` + digest('a') + `": "/b.jpg"}`, "duplicate"},
		{"short key", `{"abc": "/a.jpg"}`, "malformed"},
		{"upper case key", `{"` + strings.Repeat("A", 64) + `": "/a.jpg"}`, "malformed"},
		{"numeric value", `{"` + digest('a') + `": 12}`, "does not map"},
		{"empty path", `{"` + digest('a') + `": ""}`, "does not map"},
		{"trailing data", `{"` + digest('a') + `": "/a.jpg"} {}`, "trailing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := memfs.New()
			if err := util.WriteFile(fsys, "hash.json", []byte(tt.content), 0o644); err != nil {
				t.Fatalf("seed: %v", err)
			}
			ix, err := Load(NewStore(fsys, "hash.json"))
			if ix != nil {
				t.Fatalf("expected no index, got %v", ix.Entries())
			}
			if !errors.Is(err, ErrCorruptIndex) {
				t.Fatalf("expected ErrCorruptIndex, got %v", err)
			}
			var corrupt *CorruptIndexError
			if !errors.As(err, &corrupt) || corrupt.Store != "hash.json" {
				t.Fatalf("expected CorruptIndexError for hash.json, got %#v", err)
			}
			if !strings.Contains(corrupt.Reason, tt.reason) {
				t.Fatalf("reason %q does not mention %q", corrupt.Reason, tt.reason)
			}
		})
	}
}

// faultyFS wraps a billy filesystem and fails selected operations.
type faultyFS struct {
	billy.Filesystem
	failWrite  bool
	failRename bool
}

var errInjected = errors.New("injected failure")

func (f *faultyFS) TempFile(dir, prefix string) (billy.File, error) {
	file, err := f.Filesystem.TempFile(dir, prefix)
	if err != nil || !f.failWrite {
		return file, err
	}
	return &faultyFile{File: file}, nil
}

func (f *faultyFS) Rename(from, to string) error {
	if f.failRename {
		return errInjected
	}
	return f.Filesystem.Rename(from, to)
}

type faultyFile struct {
	billy.File
}

func (f *faultyFile) Write(p []byte) (int, error) {
	n, _ := f.File.Write(p[:len(p)/2])
	return n, errInjected
}

func TestPersistFailureLeavesPreviousContent(t *testing.T) {
	for _, mode := range []string{"write", "rename"} {
		t.Run(mode, func(t *testing.T) {
			base := memfs.New()
			if err := sampleIndex().Persist(NewStore(base, "hash.json")); err != nil {
				t.Fatalf("seed: %v", err)
			}
			before, err := util.ReadFile(base, "hash.json")
			if err != nil {
				t.Fatalf("read: %v", err)
			}

			faulty := &faultyFS{Filesystem: base, failWrite: mode == "write", failRename: mode == "rename"}
			replacement := New()
			replacement.Add(digest('e'), "/photos/e.jpg")
			err = replacement.Persist(NewStore(faulty, "hash.json"))
			if !errors.Is(err, ErrPersistFailure) || !errors.Is(err, errInjected) {
				t.Fatalf("expected persist failure wrapping injected error, got %v", err)
			}

			after, err := util.ReadFile(base, "hash.json")
			if err != nil {
				t.Fatalf("read after: %v", err)
			}
			if !bytes.Equal(before, after) {
				t.Fatalf("store changed after failed persist:\nbefore %s\nafter %s", before, after)
			}
			assertNoTempFiles(t, base)
		})
	}
}

func TestPersistRejectsNonUTF8Path(t *testing.T) {
	fsys := memfs.New()
	store := NewStore(fsys, "hash.json")
	if err := sampleIndex().Persist(store); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	before, err := util.ReadFile(fsys, "hash.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	latin1 := "/photos/caf\xe9.jpg"
	ix := New()
	ix.Add(digest('e'), latin1)
	err = ix.Persist(store)
	if !errors.Is(err, ErrPersistFailure) {
		t.Fatalf("expected ErrPersistFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), `caf\xe9.jpg`) {
		t.Fatalf("expected error to name the path, got %v", err)
	}

	after, err := util.ReadFile(fsys, "hash.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("previous index changed:\n%s", after)
	}
	assertNoTempFiles(t, fsys)
}

func TestLoadFromReadOnlyDirectoryWithoutLockFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}
	dir := filepath.Join(t.TempDir(), "elodie")
	path := filepath.Join(dir, "hash.json")
	if err := sampleIndex().Persist(NewFileStore(path)); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := os.Remove(path + ".lock"); err != nil {
		t.Fatalf("remove lock file: %v", err)
	}
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	loaded, err := Load(NewFileStore(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Equal(sampleIndex()) {
		t.Fatalf("unexpected entries: %v", loaded.Entries())
	}
}
