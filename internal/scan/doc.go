// Package scan walks a media tree and fingerprints every accepted file.
//
// Traversal runs on the calling goroutine and never follows symlinks below
// the root. Accepted paths are then fed to a bounded pool of workers, each
// owning its own hasher, and results are gathered by a single collector.
// Unreadable entries and files that fail to hash are logged, counted in the
// Result and skipped; only an unreadable root or a cancelled context aborts
// a scan.
package scan
