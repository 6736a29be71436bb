// Package metadata reads original capture timestamps from media files.
//
// Providers are best-effort: every failure (missing tool, unreadable file,
// malformed output, absent tag) is reported as ErrUnavailable so callers can
// treat it as "no timestamp" without inspecting the cause.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"elodie/internal/config"
)

// ErrUnavailable classifies every provider failure.
var ErrUnavailable = errors.New("capture time unavailable")

// Provider returns the original capture timestamp of a file, rendered the way
// the underlying source reports it (typically "2006:01:02 15:04:05").
type Provider interface {
	Name() string
	CaptureTime(ctx context.Context, path string) (string, error)
}

// New selects the provider named in cfg.
func New(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return Nop{}, nil
	}
	switch cfg.Metadata.Provider {
	case config.ProviderExiftool, "":
		return NewExiftool(cfg.Metadata.ExiftoolBinary, time.Duration(cfg.Metadata.TimeoutSeconds)*time.Second), nil
	case config.ProviderEXIF:
		return EXIF{}, nil
	case config.ProviderNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown metadata provider %q", cfg.Metadata.Provider)
	}
}

func unavailable(path, source string, cause error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, source, path, cause)
}

// EXIF decodes DateTimeOriginal in-process.
type EXIF struct{}

func (EXIF) Name() string { return config.ProviderEXIF }

func (EXIF) CaptureTime(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable(path, "exif", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", unavailable(path, "exif", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return "", unavailable(path, "exif", err)
	}
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return "", unavailable(path, "exif", err)
	}
	value, err := tag.StringVal()
	if err != nil {
		return "", unavailable(path, "exif", err)
	}
	value = strings.TrimSpace(strings.TrimRight(value, "\x00"))
	if value == "" {
		return "", unavailable(path, "exif", errors.New("empty DateTimeOriginal"))
	}
	return value, nil
}

// Nop never finds a timestamp.
type Nop struct{}

func (Nop) Name() string { return config.ProviderNone }

func (Nop) CaptureTime(_ context.Context, path string) (string, error) {
	return "", unavailable(path, "none", errors.New("metadata disabled"))
}
