// Package hasher computes SHA-256 content digests of files without loading
// them into memory.
//
// A Hasher owns one accumulator and one read buffer. It is reset after every
// digest so a single instance can be reused across files, but it must never be
// shared between goroutines; scan workers each construct their own.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

// DefaultBufferSize is the read chunk size used when none is configured.
const DefaultBufferSize = 64 * 1024

// DigestLength is the length of a rendered digest in hex characters.
const DigestLength = sha256.Size * 2

// ErrHashFailure classifies every error returned by HashFile.
var ErrHashFailure = errors.New("hash failure")

// HashFailure records a file that could not be opened or read.
type HashFailure struct {
	Path  string
	Cause error
}

func (e *HashFailure) Error() string {
	return fmt.Sprintf("hash %s: %v", e.Path, e.Cause)
}

func (e *HashFailure) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrHashFailure) match any HashFailure.
func (e *HashFailure) Is(target error) bool { return target == ErrHashFailure }

// Hasher is a reusable streaming digest accumulator.
type Hasher struct {
	acc hash.Hash
	buf []byte
}

// New returns a Hasher reading in chunks of bufferSize bytes.
func New(bufferSize int) *Hasher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hasher{
		acc: sha256.New(),
		buf: make([]byte, bufferSize),
	}
}

// HashFile returns the lowercase hex digest of the file at path together with
// the number of bytes read.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, &HashFailure{Path: path, Cause: err}
	}
	defer f.Close()

	digest, n, err := h.HashReader(f)
	if err != nil {
		return "", n, &HashFailure{Path: path, Cause: err}
	}
	return digest, n, nil
}

// HashReader digests everything readable from r. The accumulator is reset on
// every exit path so a failed read never leaks into the next digest.
func (h *Hasher) HashReader(r io.Reader) (string, int64, error) {
	defer h.acc.Reset()

	// Hide WriterTo/ReaderFrom so CopyBuffer actually uses the bounded buffer.
	n, err := io.CopyBuffer(struct{ io.Writer }{h.acc}, struct{ io.Reader }{r}, h.buf)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.acc.Sum(nil)), n, nil
}

// IsDigest reports whether s is a well-formed lowercase hex SHA-256 digest.
func IsDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
