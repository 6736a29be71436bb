package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"elodie/internal/config"
	"elodie/internal/deps"
	"elodie/internal/fingerprint"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckIndex loads the persisted fingerprint index read-only and reports its
// size. A missing index is reported as not generated.
func CheckIndex(name string, store *fingerprint.Store) Result {
	ix, err := fingerprint.Load(store)
	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries)", store.Location(), ix.Len())}
	case errors.Is(err, fingerprint.ErrNoIndex):
		return Result{Name: name, Detail: fmt.Sprintf("%s (not generated, run generate-db)", store.Location())}
	case errors.Is(err, fingerprint.ErrCorruptIndex):
		return Result{Name: name, Detail: fmt.Sprintf("%v (regenerate with generate-db)", err)}
	default:
		return Result{Name: name, Detail: err.Error()}
	}
}

// CheckSystemDeps evaluates the external executables the configured
// metadata provider needs. exiftool is optional unless it is the selected
// provider.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "exiftool",
			Command:     cfg.Metadata.ExiftoolBinary,
			Description: "Reads capture timestamps during import",
			VersionArgs: []string{"-ver"},
			Optional:    cfg.Metadata.Provider != config.ProviderExiftool,
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}
