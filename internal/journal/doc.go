// Package journal persists maintenance runs in a local SQLite database.
//
// Every destructive command opens a Run, copies each remote row into a Backup
// before mutating it, and records multi-call mutations as saga Steps. The
// journal is the undo log for a remote database that offers no cross-call
// transactions: `journal restore` replays backups and `journal pending` lists
// steps a crash or failed compensation left open.
//
// Schema changes add a numbered file under migrations/.
package journal
