package maintenance_test

import (
	"context"
	"sync"
	"testing"

	"oshimaint/internal/journal"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/notifications"
	"oshimaint/internal/store/storetest"
	"oshimaint/internal/testsupport"
)

type publishedEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, publishedEvent{event: event, payload: payload})
	return nil
}

type harness struct {
	mem      *storetest.Memory
	journal  *journal.Store
	notifier *recordingNotifier
	runner   *maintenance.Runner
	m        *maintenance.Maintainer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	mem := storetest.New()
	notifier := &recordingNotifier{}
	return &harness{
		mem:      mem,
		journal:  store,
		notifier: notifier,
		runner: &maintenance.Runner{
			Journal:  store,
			Notifier: notifier,
			LockPath: cfg.LockPath(),
		},
		m: &maintenance.Maintainer{Store: mem},
	}
}

// session opens a journal run directly, bypassing the runner.
func (h *harness) session(t *testing.T, dryRun bool) *maintenance.Session {
	t.Helper()
	run := testsupport.BeginRun(t, h.journal, "test", dryRun)
	return maintenance.NewSession(h.journal, run)
}

func (h *harness) backups(t *testing.T, session *maintenance.Session) []journal.Backup {
	t.Helper()
	backups, err := h.journal.Backups(context.Background(), session.RunID, false)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	return backups
}

func (h *harness) steps(t *testing.T, session *maintenance.Session) []journal.Step {
	t.Helper()
	steps, err := h.journal.Steps(context.Background(), session.RunID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	return steps
}
