package scan

import "sort"

// FileRecord is one successfully hashed file.
type FileRecord struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	// CapturedAt is the original capture timestamp reported by a metadata
	// provider. Empty means unknown.
	CapturedAt string `json:"captured_at,omitempty"`
}

// WithCapturedAt returns a copy of r carrying the timestamp.
func (r FileRecord) WithCapturedAt(ts string) FileRecord {
	r.CapturedAt = ts
	return r
}

// SortByPath orders records lexicographically by path in place.
func SortByPath(records []FileRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})
}
