// Package services defines shared utilities consumed by maintenance commands
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp journal run IDs, command names, and table
//     names for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent journal run statuses (failed vs aborted vs cancelled).
//
// Use these helpers when wiring new commands so error handling and
// observability stay uniform.
package services
