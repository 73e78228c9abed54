// Package catalog defines the rows of the fan-content database: celebrities,
// episodes, locations, items and the junction tables linking episodes to the
// places and products shown in them.
//
// Field tags follow the remote column names. The json tags serve PostgREST
// payloads and journal backups; the db tags serve pgx row mapping.
package catalog
