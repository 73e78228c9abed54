// Package logging assembles structured slog loggers and formatting helpers used
// across oshimaint commands.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so maintenance code can tag log
// lines with the journal run ID, command and table automatically. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Logs go to stderr; stdout is reserved for command output (tables and --json).
package logging
