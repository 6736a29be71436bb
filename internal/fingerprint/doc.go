// Package fingerprint owns the digest to path index used for duplicate
// detection and its durable JSON store.
//
// The persisted form is a single JSON object keyed by lowercase hex digest,
// written with sorted keys. Writes are whole-file atomic replacements; loads
// reject malformed or repeated keys instead of returning a partial index.
package fingerprint
