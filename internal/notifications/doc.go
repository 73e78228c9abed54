// Package notifications reports maintenance run outcomes through pluggable
// notifiers.
//
// ntfy and Telegram are supported; when both are configured every event fans
// out to both, and when neither is configured a no-op service is returned.
// Callers depend only on the Service interface and publish typed events with
// a loose payload, so commands do not duplicate HTTP glue.
package notifications
