package metadata

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"elodie/internal/config"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exiftool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestExiftoolReadsDateTimeOriginal(t *testing.T) {
	stub := writeStub(t, `echo '[{"SourceFile":"x.jpg","EXIF:DateTimeOriginal":"2021:06:01 10:20:30"}]'`)
	got, err := NewExiftool(stub, 5*time.Second).CaptureTime(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("CaptureTime: %v", err)
	}
	if got != "2021:06:01 10:20:30" {
		t.Fatalf("CaptureTime = %q", got)
	}
}

func TestExiftoolPassesExpectedArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	stub := writeStub(t, `printf '%s\n' "$@" > `+argsFile+`
echo '[{}]'`)
	_, _ = NewExiftool(stub, 0).CaptureTime(context.Background(), "/photos/-odd.jpg")

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := "-charset\nUTF8\n-EXIF:DateTimeOriginal\n-G\n-n\n-j\n--\n/photos/-odd.jpg\n"
	if string(data) != want {
		t.Fatalf("args = %q, want %q", data, want)
	}
}

func TestExiftoolFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"missing tag", `echo '[{"SourceFile":"x.jpg"}]'`},
		{"empty array", `echo '[]'`},
		{"malformed output", `echo 'not json'`},
		{"non-zero exit", `echo 'boom' >&2; exit 1`},
		{"null tag", `echo '[{"EXIF:DateTimeOriginal":null}]'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExiftool(writeStub(t, tt.script), time.Second).CaptureTime(context.Background(), "x.jpg")
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestExiftoolMissingBinary(t *testing.T) {
	_, err := NewExiftool(filepath.Join(t.TempDir(), "absent"), time.Second).CaptureTime(context.Background(), "x.jpg")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExiftoolTimeout(t *testing.T) {
	stub := writeStub(t, `exec sleep 5`)
	start := time.Now()
	_, err := NewExiftool(stub, 100*time.Millisecond).CaptureTime(context.Background(), "x.jpg")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestParseExiftoolNumericValue(t *testing.T) {
	got, err := parseExiftoolOutput([]byte(`[{"EXIF:DateTimeOriginal":2021}]`))
	if err != nil || got != "2021" {
		t.Fatalf("parse = %q, %v", got, err)
	}
}

// writeTIFF writes a minimal little-endian TIFF whose Exif sub-IFD carries a
// DateTimeOriginal tag.
func writeTIFF(t *testing.T, dateTime string) string {
	t.Helper()
	le := binary.LittleEndian
	value := append([]byte(dateTime), 0)

	buf := make([]byte, 44)
	copy(buf[0:], "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], 8)

	// IFD0: one entry pointing at the Exif IFD.
	le.PutUint16(buf[8:], 1)
	le.PutUint16(buf[10:], 0x8769)
	le.PutUint16(buf[12:], 4)
	le.PutUint32(buf[14:], 1)
	le.PutUint32(buf[18:], 26)
	le.PutUint32(buf[22:], 0)

	// Exif IFD: DateTimeOriginal as ASCII stored at offset 44.
	le.PutUint16(buf[26:], 1)
	le.PutUint16(buf[28:], 0x9003)
	le.PutUint16(buf[30:], 2)
	le.PutUint32(buf[32:], uint32(len(value)))
	le.PutUint32(buf[36:], 44)
	le.PutUint32(buf[40:], 0)

	buf = append(buf, value...)
	path := filepath.Join(t.TempDir(), "photo.tif")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write tiff: %v", err)
	}
	return path
}

func TestEXIFReadsDateTimeOriginal(t *testing.T) {
	path := writeTIFF(t, "2021:06:01 10:20:30")
	got, err := EXIF{}.CaptureTime(context.Background(), path)
	if err != nil {
		t.Fatalf("CaptureTime: %v", err)
	}
	if got != "2021:06:01 10:20:30" {
		t.Fatalf("CaptureTime = %q", got)
	}
}

func TestEXIFWithoutMetadataIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	if err := os.WriteFile(path, []byte("AA"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (EXIF{}).CaptureTime(context.Background(), path); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := (EXIF{}).CaptureTime(context.Background(), path+".missing"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for missing file, got %v", err)
	}
}

func TestNopIsAlwaysUnavailable(t *testing.T) {
	if _, err := (Nop{}).CaptureTime(context.Background(), "x.jpg"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
		wantErr  bool
	}{
		{config.ProviderExiftool, config.ProviderExiftool, false},
		{config.ProviderEXIF, config.ProviderEXIF, false},
		{config.ProviderNone, config.ProviderNone, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Metadata.Provider = tt.provider
		p, err := New(&cfg)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tt.provider)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q): %v", tt.provider, err)
		}
		if p.Name() != tt.want {
			t.Fatalf("New(%q).Name() = %q", tt.provider, p.Name())
		}
	}
}
