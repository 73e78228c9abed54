// Package maintenance runs the data-quality and affiliate operations against
// the catalog store.
//
// Every operation executes inside a Runner session: the run is journaled,
// each remote row is backed up before it is changed, and the outcome is
// reported through the notification service. Sessions default to dry-run;
// nothing is written remotely unless the caller asks to apply.
package maintenance
