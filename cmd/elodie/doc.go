// Package main hosts the elodie CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the scan engine,
// metadata provider and run journal, and hands them to the importer package.
// Reports go to stdout; logs and progress go to stderr.
//
// Keep this package thin: new behaviour belongs in the internal packages and
// is surfaced here through commands or flags.
package main
