package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"elodie/internal/config"
	"elodie/internal/fingerprint"
	"elodie/internal/importer"
	"elodie/internal/scan"
	"elodie/internal/testsupport"
)

func TestImportPrintsEnumeratedReport(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	out, _, err := runCLI(t, []string{"import", root, "--destination", t.TempDir()}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 report lines, got %d: %q", len(lines), out)
	}
	if want := "1. " + filepath.Join(root, "photo1.jpg") + ": " + photoDigest; lines[0] != want {
		t.Fatalf("line 1 = %q, want %q", lines[0], want)
	}
	if want := "2. " + filepath.Join(root, "photo2.jpg") + ": " + photoDigest; lines[1] != want {
		t.Fatalf("line 2 = %q, want %q", lines[1], want)
	}
	requireNotContains(t, out, "note.txt")

	if _, err := os.Stat(env.cfg.HashFilePath("")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("import must not write the index, stat err = %v", err)
	}
}

func TestImportJSONReport(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)
	dest := t.TempDir()

	out, _, err := runCLI(t, []string{"import", root, "--destination", dest, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("import --json: %v", err)
	}
	var report importer.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Rows) != 2 || report.Duplicates != 1 {
		t.Fatalf("expected 2 rows with 1 duplicate, got %+v", report)
	}
	if report.Destination != dest {
		t.Fatalf("destination = %q, want %q", report.Destination, dest)
	}
	if report.Rows[1].DuplicateOf != report.Rows[0].Path {
		t.Fatalf("expected second row to duplicate the first, got %+v", report.Rows[1])
	}
}

func TestImportTableReport(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	out, _, err := runCLI(t, []string{"import", root, "--destination", t.TempDir(), "--table"}, env.configPath)
	if err != nil {
		t.Fatalf("import --table: %v", err)
	}
	requireContains(t, out, "Digest")
	requireContains(t, out, photoDigest)
	requireNotContains(t, out, "Status")
}

func TestImportRejectsBadDestination(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	if _, _, err := runCLI(t, []string{"import", root}, env.configPath); err == nil {
		t.Fatal("expected missing --destination to fail")
	}

	file := filepath.Join(t.TempDir(), "dest.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"import", root, "--destination", file}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected non-directory destination error, got %v", err)
	}
}

func TestImportMissingSourceFails(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "nope")

	_, _, err := runCLI(t, []string{"import", missing, "--destination", t.TempDir()}, env.configPath)
	if !errors.Is(err, scan.ErrRootUnreadable) {
		t.Fatalf("expected ErrRootUnreadable, got %v", err)
	}
}

func TestImportAgainstIndexRequiresIndex(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	_, _, err := runCLI(t, []string{"import", root, "--destination", t.TempDir(), "--against-index"}, env.configPath)
	if !errors.Is(err, fingerprint.ErrNoIndex) {
		t.Fatalf("expected ErrNoIndex, got %v", err)
	}
	requireContains(t, err.Error(), "generate-db")
}

func TestGenerateDBThenImportAgainstIndex(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	out, _, err := runCLI(t, []string{"generate-db", root}, env.configPath)
	if err != nil {
		t.Fatalf("generate-db: %v", err)
	}
	requireContains(t, out, env.cfg.HashFilePath(""))
	requireContains(t, out, "unique digests: 1")

	ix, err := fingerprint.Load(fingerprint.NewFileStore(env.cfg.HashFilePath("")))
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if path, ok := ix.Lookup(photoDigest); !ok || path != filepath.Join(root, "photo1.jpg") {
		t.Fatalf("expected photo1.jpg indexed, got %q (%v)", path, ok)
	}

	other := t.TempDir()
	testsupport.WriteContent(t, other, "copy.jpg", "AA")
	testsupport.WriteContent(t, other, "fresh.png", "BB")

	out, _, err = runCLI(t, []string{"import", other, "--destination", t.TempDir(), "--against-index"}, env.configPath)
	if err != nil {
		t.Fatalf("import --against-index: %v", err)
	}
	requireContains(t, out, "copy.jpg: "+photoDigest+" [known]")
	requireContains(t, out, "fresh.png")
	requireContains(t, out, "[new]")
}

func TestGenerateDBHashFileFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	if _, _, err := runCLI(t, []string{"generate-db", root, "--hashfile", "photos.json", "--json"}, env.configPath); err != nil {
		t.Fatalf("generate-db --hashfile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.ConfigDir, "photos.json")); err != nil {
		t.Fatalf("expected custom hash file: %v", err)
	}
	if _, err := os.Stat(env.cfg.HashFilePath("")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("default hash file should not exist, stat err = %v", err)
	}

	if _, _, err := runCLI(t, []string{"generate-db", root, "--hashfile", "../escape.json"}, env.configPath); err == nil {
		t.Fatal("expected path-like --hashfile to be rejected")
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"generate-db", root}, env.configPath); err != nil {
		t.Fatalf("generate-db: %v", err)
	}
	if _, _, err := runCLI(t, []string{"import", filepath.Join(root, "missing"), "--destination", t.TempDir()}, env.configPath); err == nil {
		t.Fatal("expected import of missing source to fail")
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "generate-db")
	requireContains(t, out, "succeeded")
	requireContains(t, out, "failed")

	out, _, err = runCLI(t, []string{"history", "--json", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var runs []map[string]any
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0]["command"] != "import" {
		t.Fatalf("expected newest run to be the failed import, got %v", runs)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithConfig(func(c *config.Config) {
		c.History.Enabled = false
	}))
	root := testsupport.PhotoTree(t)

	if _, _, err := runCLI(t, []string{"generate-db", root}, env.configPath); err != nil {
		t.Fatalf("generate-db: %v", err)
	}
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "disabled")
	if _, err := os.Stat(env.cfg.HistoryDBPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("history database should not be created, stat err = %v", err)
	}
}

func TestStatusReportsIndex(t *testing.T) {
	env := setupCLITestEnv(t)
	root := testsupport.PhotoTree(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Checks ==")
	requireContains(t, out, "not generated")

	if _, _, err := runCLI(t, []string{"generate-db", root}, env.configPath); err != nil {
		t.Fatalf("generate-db: %v", err)
	}
	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "(1 entries)")
	requireNotContains(t, out, "not generated")
	requireContains(t, out, env.configPath)
}

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !view.ConfigExists || view.ConfigDir != env.cfg.Paths.ConfigDir {
		t.Fatalf("unexpected status view: %+v", view)
	}
	if view.Provider != config.ProviderNone || len(view.Checks) < 2 {
		t.Fatalf("expected provider none with directory and index checks, got %+v", view)
	}
	if view.Checks[1].Name != "Fingerprint index" || view.Checks[1].Passed {
		t.Fatalf("expected missing index check, got %+v", view.Checks[1])
	}
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[scan]\nworkers = -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", t.TempDir())
	if _, _, err := runCLI(t, []string{"status"}, path); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestImportMarksUnknownCaptureTime(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithExiftoolScript("exit 1"))
	root := testsupport.PhotoTree(t)

	out, _, err := runCLI(t, []string{"import", root, "--destination", t.TempDir()}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "1. "+filepath.Join(root, "photo1.jpg")+": "+photoDigest+" (unknown)")
	requireContains(t, out, "2. "+filepath.Join(root, "photo2.jpg")+": "+photoDigest+" (unknown)")
}
