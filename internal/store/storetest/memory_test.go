package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"oshimaint/internal/catalog"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

var (
	_ store.Store  = (*Memory)(nil)
	_ store.Atomic = (*AtomicMemory)(nil)
)

func TestFailOnFiresOnce(t *testing.T) {
	m := New()
	m.FailOn("DeleteEpisode", errors.New("boom"))

	ctx := context.Background()
	if err := m.DeleteEpisode(ctx, "x"); err == nil {
		t.Fatal("expected injected error")
	}
	if err := m.DeleteEpisode(ctx, "x"); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
	if calls := m.Calls(); len(calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %v", calls)
	}
}

func TestFindEpisodeNotFound(t *testing.T) {
	m := New()
	_, err := m.FindEpisodeByVideoURL(context.Background(), "https://youtu.be/x")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReferenceCounts(t *testing.T) {
	m := New()
	m.EpisodeLocations = []catalog.EpisodeLocation{{EpisodeID: "e1", LocationID: "l1"}, {EpisodeID: "e2", LocationID: "l1"}}
	m.EpisodeItems = []catalog.EpisodeItem{{EpisodeID: "e1", ItemID: "i1"}}

	ctx := context.Background()
	episodes, err := store.EpisodeReferenceCounts(ctx, m, []string{"e1", "e2", "e3"})
	if err != nil {
		t.Fatalf("EpisodeReferenceCounts: %v", err)
	}
	if episodes["e1"] != 2 || episodes["e2"] != 1 || episodes["e3"] != 0 {
		t.Fatalf("unexpected episode counts %v", episodes)
	}
	if _, ok := episodes["e3"]; !ok {
		t.Fatal("expected unreferenced episode to be present with zero")
	}

	locations, err := store.LocationReferenceCounts(ctx, m, []string{"l1", "l2"})
	if err != nil {
		t.Fatalf("LocationReferenceCounts: %v", err)
	}
	if locations["l1"] != 2 || locations["l2"] != 0 {
		t.Fatalf("unexpected location counts %v", locations)
	}
}

func TestRestoreRowRejectsUnknownTable(t *testing.T) {
	m := New()
	err := m.RestoreRow(context.Background(), "users", json.RawMessage(`{}`))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := m.RestoreRow(context.Background(), catalog.TableLocations, json.RawMessage(`{"id":"l1","name":"a"}`)); err != nil {
		t.Fatalf("RestoreRow: %v", err)
	}
	if len(m.Locations) != 1 || m.Locations[0].ID != "l1" {
		t.Fatalf("expected restored location, got %#v", m.Locations)
	}
}

func TestAtomicMergeMovesLinks(t *testing.T) {
	m := NewAtomic()
	m.Locations = []catalog.Location{{ID: "keep"}, {ID: "dup"}}
	m.EpisodeLocations = []catalog.EpisodeLocation{
		{EpisodeID: "e1", LocationID: "keep"},
		{EpisodeID: "e1", LocationID: "dup"},
		{EpisodeID: "e2", LocationID: "dup"},
	}

	moved, err := m.MergeLocation(context.Background(), "keep", "dup")
	if err != nil {
		t.Fatalf("MergeLocation: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 new survivor link, got %d", moved)
	}
	if len(m.Locations) != 1 || len(m.EpisodeLocations) != 2 {
		t.Fatalf("unexpected state %#v %#v", m.Locations, m.EpisodeLocations)
	}
}

func TestChunk(t *testing.T) {
	chunks := store.Chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if store.Chunk(nil, 2) != nil {
		t.Fatal("expected nil for empty input")
	}
}
