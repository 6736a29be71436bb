// Package preflight provides readiness checks for the filesystem paths and
// external tools elodie depends on.
//
// The CLI "elodie status" command runs RunAll to display health. Import and
// generate-db rely on the scan engine's own root checks instead, so a failing
// optional check never blocks them.
package preflight
