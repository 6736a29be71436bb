// Package importer coordinates the import and generate-db operations.
//
// Import scans a source tree, attaches capture timestamps where the metadata
// provider can supply them and returns an enumerated report sorted by path.
// It never writes the persisted index; when an index is supplied it is used
// read-only to mark rows as new, known or duplicate.
//
// GenerateDB scans a source tree, builds a fresh fingerprint index and
// atomically replaces the store. It does not merge with earlier content.
package importer
