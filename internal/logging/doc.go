// Package logging assembles structured slog loggers and formatting helpers used
// across elodie.
//
// It owns the console/JSON handlers, the optional size-rotated log file, and
// context helpers that tag log lines with the scan run identifier and command
// name. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
//
// Log output defaults to stderr; stdout is reserved for command reports so
// they can be piped without interleaved log lines.
package logging
