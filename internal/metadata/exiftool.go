package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"elodie/internal/config"
)

const exiftoolDateTag = "EXIF:DateTimeOriginal"

// Exiftool shells out to exiftool once per file.
type Exiftool struct {
	binary  string
	timeout time.Duration
}

// NewExiftool builds a provider running binary (default "exiftool"). A zero
// timeout leaves cancellation to the caller's context.
func NewExiftool(binary string, timeout time.Duration) *Exiftool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "exiftool"
	}
	return &Exiftool{binary: binary, timeout: timeout}
}

func (e *Exiftool) Name() string { return config.ProviderExiftool }

// Binary returns the executable the provider invokes.
func (e *Exiftool) Binary() string { return e.binary }

func (e *Exiftool) CaptureTime(ctx context.Context, path string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.binary, "-charset", "UTF8", "-EXIF:DateTimeOriginal", "-G", "-n", "-j", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", unavailable(path, "exiftool", err)
	}
	value, err := parseExiftoolOutput(output)
	if err != nil {
		return "", unavailable(path, "exiftool", err)
	}
	return value, nil
}

// parseExiftoolOutput reads DateTimeOriginal from the first object of the
// JSON array exiftool emits with -j -G.
func parseExiftoolOutput(output []byte) (string, error) {
	var docs []map[string]any
	if err := json.Unmarshal(output, &docs); err != nil {
		return "", fmt.Errorf("exiftool parse: %w", err)
	}
	if len(docs) == 0 {
		return "", errors.New("exiftool returned no records")
	}
	raw, ok := docs[0][exiftoolDateTag]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s missing", exiftoolDateTag)
	}
	var value string
	switch v := raw.(type) {
	case string:
		value = v
	default:
		value = fmt.Sprint(v)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s empty", exiftoolDateTag)
	}
	return value, nil
}
