package testsupport

import (
	"context"
	"testing"

	"oshimaint/internal/config"
	"oshimaint/internal/journal"
)

// MustOpenJournal opens the journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// BeginRun opens a run in the journal for tests.
func BeginRun(t testing.TB, store *journal.Store, command string, dryRun bool) *journal.Run {
	t.Helper()

	run, err := store.BeginRun(context.Background(), command, dryRun)
	if err != nil {
		t.Fatalf("store.BeginRun: %v", err)
	}
	return run
}
