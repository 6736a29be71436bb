package preflight

import (
	"context"
	"fmt"

	"elodie/internal/config"
	"elodie/internal/fingerprint"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the readiness checks that apply to cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Config directory", cfg.Paths.ConfigDir),
		CheckIndex("Fingerprint index", fingerprint.NewFileStore(cfg.HashFilePath(""))),
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Optional && !status.Available {
			continue
		}
		detail := status.Detail
		if status.Available {
			detail = status.Path
			if status.Version != "" {
				detail = fmt.Sprintf("%s (version %s)", status.Path, status.Version)
			}
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: detail})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
