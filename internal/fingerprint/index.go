package fingerprint

import (
	"sort"

	"elodie/internal/scan"
)

// Index maps content digests to the first path seen with that content. It is
// not safe for concurrent mutation; one orchestrator owns it per command.
type Index struct {
	entries map[string]string
}

// Duplicate is a record whose digest was already indexed under another path.
type Duplicate struct {
	Digest   string `json:"digest"`
	Path     string `json:"path"`
	Original string `json:"original"`
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]string)}
}

// Build constructs a fresh index from records in input order. When several
// records share a digest the first one wins and the rest are returned as
// duplicates.
func Build(records []scan.FileRecord) (*Index, []Duplicate) {
	ix := &Index{entries: make(map[string]string, len(records))}
	var dups []Duplicate
	for _, r := range records {
		if original, added := ix.Add(r.Digest, r.Path); !added {
			dups = append(dups, Duplicate{Digest: r.Digest, Path: r.Path, Original: original})
		}
	}
	return ix, dups
}

// Add indexes path under digest unless the digest is already known, in which
// case the existing path is returned and the index is left unchanged.
func (ix *Index) Add(digest, path string) (string, bool) {
	if existing, ok := ix.entries[digest]; ok {
		return existing, false
	}
	ix.entries[digest] = path
	return path, true
}

// Lookup returns the indexed path for digest.
func (ix *Index) Lookup(digest string) (string, bool) {
	if ix == nil {
		return "", false
	}
	path, ok := ix.entries[digest]
	return path, ok
}

// Len returns the number of indexed digests.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Digests returns every indexed digest in lexicographic order.
func (ix *Index) Digests() []string {
	if ix == nil {
		return nil
	}
	out := make([]string, 0, len(ix.entries))
	for d := range ix.entries {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Entries returns a copy of the digest to path mapping.
func (ix *Index) Entries() map[string]string {
	out := make(map[string]string, ix.Len())
	if ix == nil {
		return out
	}
	for d, p := range ix.entries {
		out[d] = p
	}
	return out
}

// Equal reports whether both indexes hold the same mapping.
func (ix *Index) Equal(other *Index) bool {
	if ix.Len() != other.Len() {
		return false
	}
	if ix == nil || other == nil {
		return true
	}
	for d, p := range ix.entries {
		if q, ok := other.entries[d]; !ok || q != p {
			return false
		}
	}
	return true
}
