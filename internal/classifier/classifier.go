// Package classifier decides which directory entries take part in hashing.
package classifier

import (
	"io/fs"
	"strings"
)

// Entry is the minimal view of a directory entry the classifier needs.
type Entry struct {
	Path string
	Name string
	// Regular is true only for regular files; symlinks, directories, devices,
	// sockets and pipes report false.
	Regular bool
}

// FromDirEntry builds an Entry from a fs.DirEntry without following symlinks.
func FromDirEntry(path string, d fs.DirEntry) Entry {
	return Entry{
		Path:    path,
		Name:    d.Name(),
		Regular: d.Type().IsRegular(),
	}
}

// Classifier is a pure predicate over directory entries.
type Classifier struct {
	suffixes   []string
	skipHidden bool
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithSkipHidden rejects entries whose name starts with a dot.
func WithSkipHidden() Option {
	return func(c *Classifier) {
		c.skipHidden = true
	}
}

// New builds a classifier accepting regular files whose name ends with one of
// extensions (matched case-sensitively, with or without a leading dot). An
// empty extension list accepts every regular file.
func New(extensions []string, opts ...Option) *Classifier {
	c := &Classifier{}
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		c.suffixes = append(c.suffixes, "."+ext)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Accept reports whether the entry should be hashed.
func (c *Classifier) Accept(e Entry) bool {
	if !e.Regular {
		return false
	}
	if c.skipHidden && IsHidden(e.Name) {
		return false
	}
	if len(c.suffixes) == 0 {
		return true
	}
	for _, suffix := range c.suffixes {
		if len(e.Name) > len(suffix) && strings.HasSuffix(e.Name, suffix) {
			return true
		}
	}
	return false
}

// SkipDir reports whether traversal should not descend into a directory.
func (c *Classifier) SkipDir(name string) bool {
	return c.skipHidden && IsHidden(name)
}

// Extensions returns the configured allow-list without leading dots.
func (c *Classifier) Extensions() []string {
	out := make([]string, 0, len(c.suffixes))
	for _, suffix := range c.suffixes {
		out = append(out, strings.TrimPrefix(suffix, "."))
	}
	return out
}

// IsHidden reports dot-prefixed names, excluding "." and "..".
func IsHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}
