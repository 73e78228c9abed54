// Package dedupe finds duplicate and low-value rows in the fan-content
// catalog and decides which of them are safe to delete.
//
// Classification is pure: functions take rows and reference counts and
// return verdicts. Deleting is the caller's job, and callers must pass every
// candidate through SafeDelete so rows still linked from a junction table
// survive no matter how strongly a heuristic flags them.
package dedupe
