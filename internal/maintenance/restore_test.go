package maintenance_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"oshimaint/internal/catalog"
	"oshimaint/internal/services"
)

func TestRestoreReappliesDeletedRows(t *testing.T) {
	h := newHarness(t)
	seedEpisodes(h)
	clean := h.session(t, false)
	if _, err := h.m.CleanEpisodes(context.Background(), clean, episodeOptions()); err != nil {
		t.Fatalf("CleanEpisodes: %v", err)
	}
	if len(h.mem.Episodes) != 3 {
		t.Fatalf("expected 3 episodes after clean, got %d", len(h.mem.Episodes))
	}

	dry, err := h.m.Restore(context.Background(), h.session(t, true), clean.RunID[:8])
	if err != nil {
		t.Fatalf("dry Restore: %v", err)
	}
	if dry.Pending != 2 || len(dry.Restored) != 0 || len(h.mem.Episodes) != 3 {
		t.Fatalf("unexpected dry-run restore %#v", dry)
	}

	report, err := h.m.Restore(context.Background(), h.session(t, false), clean.RunID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(report.Restored) != 2 || report.Run != clean.RunID {
		t.Fatalf("unexpected report %#v", report)
	}
	if !slices.Contains(remainingEpisodeIDs(h), "u-new") || !slices.Contains(remainingEpisodeIDs(h), "short") {
		t.Fatalf("episodes not restored: %v", remainingEpisodeIDs(h))
	}

	again, err := h.m.Restore(context.Background(), h.session(t, false), clean.RunID)
	if err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	if again.Pending != 0 {
		t.Fatalf("backups restored twice: %#v", again)
	}
}

func TestRestoreKeepsEarliestCopy(t *testing.T) {
	h := newHarness(t)
	source := h.session(t, false)
	ctx := context.Background()
	first := catalog.Location{ID: "loc", Name: "original", TabelogURL: storeURL}
	second := catalog.Location{ID: "loc", Name: "rewritten", TabelogURL: storeURL}
	if err := source.Backup(ctx, catalog.TableLocations, "loc", first); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := source.Backup(ctx, catalog.TableLocations, "loc", second); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	h.mem.Locations = []catalog.Location{{ID: "loc", Name: "current"}}

	report, err := h.m.Restore(ctx, h.session(t, false), source.RunID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(report.Restored) != 2 || len(h.mem.Locations) != 1 || h.mem.Locations[0].Name != "original" {
		t.Fatalf("unexpected restore result %#v / %#v", report, h.mem.Locations)
	}
}

func TestRestoreUnknownRun(t *testing.T) {
	h := newHarness(t)
	if _, err := h.m.Restore(context.Background(), h.session(t, false), "00000000-0000-0000-0000-000000000000"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
