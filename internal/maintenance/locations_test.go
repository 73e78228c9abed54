package maintenance_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"testing"

	"oshimaint/internal/catalog"
	"oshimaint/internal/dedupe"
	"oshimaint/internal/journal"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/services"
	"oshimaint/internal/store/storetest"
)

func locationOptions(t *testing.T) dedupe.LocationOptions {
	t.Helper()
	opts, err := dedupe.CompileLocationOptions([]string{`^covered by`, `駅$`}, []string{"不明"}, 2)
	if err != nil {
		t.Fatalf("CompileLocationOptions: %v", err)
	}
	return opts
}

func TestCleanLocationsNeverDeletesReferencedRows(t *testing.T) {
	h := newHarness(t)
	h.mem.Locations = []catalog.Location{
		{ID: "credit", Name: "covered by ABC"},
		{ID: "station", Name: "渋谷駅"},
		{ID: "real", Name: "焼肉ジャンボ 篠崎本店"},
		{ID: "placeholder", Name: "不明"},
	}
	h.mem.EpisodeLocations = []catalog.EpisodeLocation{
		{EpisodeID: "e1", LocationID: "station"},
		{EpisodeID: "e1", LocationID: "real"},
	}
	session := h.session(t, false)

	report, err := h.m.CleanLocations(context.Background(), session, locationOptions(t))
	if err != nil {
		t.Fatalf("CleanLocations returned error: %v", err)
	}
	if !slices.Equal(report.Deleted, []string{"credit", "placeholder"}) {
		t.Fatalf("deleted = %v", report.Deleted)
	}
	if len(h.mem.Locations) != 2 {
		t.Fatalf("expected 2 remaining locations, got %#v", h.mem.Locations)
	}
	counts := report.Counts()
	if counts["delete"] != 2 || counts["review"] != 1 || counts["keep"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if backups := h.backups(t, session); len(backups) != 2 {
		t.Fatalf("expected a backup per deleted row, got %d", len(backups))
	}
}

func TestCleanLocationsReportsFailedDelete(t *testing.T) {
	h := newHarness(t)
	h.mem.Locations = []catalog.Location{{ID: "credit", Name: "covered by ABC"}, {ID: "gone", Name: "不明"}}
	h.mem.FailOn("DeleteLocation", errors.New("row locked"))

	report, err := h.m.CleanLocations(context.Background(), h.session(t, false), locationOptions(t))
	if err != nil {
		t.Fatalf("CleanLocations returned error: %v", err)
	}
	if len(report.Failures) != 1 || !slices.Equal(report.Deleted, []string{"gone"}) {
		t.Fatalf("unexpected report %#v", report)
	}
}

func duplicatePair(h *harness) {
	h.mem.Locations = []catalog.Location{
		{ID: "a", Name: "鳥貴族 新宿店", TabelogURL: "https://tabelog.com/tokyo/A1304/A130401/13000001/"},
		{ID: "b", Name: "鳥貴族　新宿店"},
		{ID: "other", Name: "磯丸水産"},
	}
	h.mem.EpisodeLocations = []catalog.EpisodeLocation{
		{EpisodeID: "e1", LocationID: "a"},
		{EpisodeID: "e2", LocationID: "a"},
		{EpisodeID: "e1", LocationID: "b"},
		{EpisodeID: "e3", LocationID: "b"},
	}
}

func linkKeys(links []catalog.EpisodeLocation) []string {
	keys := make([]string, 0, len(links))
	for _, link := range links {
		keys = append(keys, link.Key())
	}
	sort.Strings(keys)
	return keys
}

func TestLocationDuplicatesReport(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)

	report, err := h.m.LocationDuplicates(context.Background(), 0)
	if err != nil {
		t.Fatalf("LocationDuplicates returned error: %v", err)
	}
	if len(report.Groups) != 1 || report.Groups[0].Survivor.ID != "a" || report.Groups[0].Duplicates[0].ID != "b" {
		t.Fatalf("unexpected groups %#v", report.Groups)
	}
	if report.Similar != nil {
		t.Fatal("similarity pass should be skipped at threshold 0")
	}
}

func TestMergeLocationsMovesLinksWithSaga(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	session := h.session(t, false)

	report, err := h.m.MergeLocations(context.Background(), session, nil)
	if err != nil {
		t.Fatalf("MergeLocations returned error: %v", err)
	}
	if !slices.Equal(report.Merged, []string{"b"}) || report.LinksMoved != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
	want := []string{"e1:a", "e2:a", "e3:a"}
	if got := linkKeys(h.mem.EpisodeLocations); !slices.Equal(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	if len(h.mem.Locations) != 2 {
		t.Fatalf("duplicate not deleted: %#v", h.mem.Locations)
	}

	steps := h.steps(t, session)
	if len(steps) != 3 {
		t.Fatalf("expected 3 saga steps, got %#v", steps)
	}
	for _, step := range steps {
		if step.State != journal.StepDone || step.Saga != "merge_location" || step.SubjectID != "b" {
			t.Fatalf("unexpected step %#v", step)
		}
	}
	if backups := h.backups(t, session); len(backups) != 3 {
		t.Fatalf("expected location and two link backups, got %d", len(backups))
	}
}

func TestMergeLocationsCompensatesFailedDelete(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	before := linkKeys(h.mem.EpisodeLocations)
	h.mem.FailOn("DeleteLocation", errors.New("foreign key violation"))
	session := h.session(t, false)

	report, err := h.m.MergeLocations(context.Background(), session, []string{"鳥貴族新宿店|13000001"})
	if err != nil {
		t.Fatalf("MergeLocations returned error: %v", err)
	}
	if len(report.Groups) != 1 || len(report.Failures) != 1 || len(report.Merged) != 0 {
		t.Fatalf("unexpected report %#v", report)
	}
	if got := linkKeys(h.mem.EpisodeLocations); !slices.Equal(got, before) {
		t.Fatalf("links after rollback = %v, want %v", got, before)
	}
	for _, step := range h.steps(t, session) {
		if step.State != journal.StepCompensated {
			t.Fatalf("step %s left %s", step.Name, step.State)
		}
	}
	open, err := h.journal.OpenSteps(context.Background())
	if err != nil || len(open) != 0 {
		t.Fatalf("expected no open steps, got %#v (%v)", open, err)
	}
}

func TestMergeLocationsReportsStrandedSaga(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	h.mem.FailOn("DeleteLocation", errors.New("foreign key violation"))
	// The first insert links the survivor; the second is the re-link undo.
	h.mem.FailOn("InsertEpisodeLocations", nil)
	h.mem.FailOn("InsertEpisodeLocations", errors.New("connection reset"))
	session := h.session(t, false)

	_, err := h.m.MergeLocations(context.Background(), session, nil)
	if !errors.Is(err, maintenance.ErrStranded) {
		t.Fatalf("expected ErrStranded, got %v", err)
	}
	open, err := h.journal.OpenSteps(context.Background())
	if err != nil {
		t.Fatalf("OpenSteps: %v", err)
	}
	states := map[string]journal.StepState{}
	for _, step := range open {
		states[step.Name] = step.State
	}
	if states["unlink_duplicate"] != journal.StepStranded || states["delete_duplicate"] != journal.StepFailed {
		t.Fatalf("unexpected open steps %#v", open)
	}
}

func TestMergeLocationsDryRun(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	report, err := h.m.MergeLocations(context.Background(), h.session(t, true), nil)
	if err != nil {
		t.Fatalf("MergeLocations returned error: %v", err)
	}
	if len(report.Groups) != 1 || len(report.Merged) != 0 || len(h.mem.Locations) != 3 {
		t.Fatalf("dry run merged rows: %#v", report)
	}
}

type atomicMemory struct {
	*storetest.Memory
	merged  [][2]string
	deleted []string
}

func (a *atomicMemory) MergeLocation(_ context.Context, survivorID, duplicateID string) (int, error) {
	a.merged = append(a.merged, [2]string{survivorID, duplicateID})
	return 1, nil
}

func (a *atomicMemory) DeleteLocationCascade(_ context.Context, locationID string) ([]catalog.EpisodeLocation, error) {
	a.deleted = append(a.deleted, locationID)
	return []catalog.EpisodeLocation{{EpisodeID: "e1", LocationID: locationID}}, nil
}

func TestAtomicStoreSkipsSaga(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	atomic := &atomicMemory{Memory: h.mem}
	h.m.Store = atomic
	session := h.session(t, false)

	report, err := h.m.MergeLocations(context.Background(), session, nil)
	if err != nil {
		t.Fatalf("MergeLocations returned error: %v", err)
	}
	if len(atomic.merged) != 1 || atomic.merged[0] != [2]string{"a", "b"} || report.LinksMoved != 1 {
		t.Fatalf("unexpected atomic merge %#v / %#v", atomic.merged, report)
	}

	del, err := h.m.DeleteLocation(context.Background(), session, h.mem.Locations[2], maintenance.LocationDeleteOptions{})
	if err != nil {
		t.Fatalf("DeleteLocation returned error: %v", err)
	}
	if !del.Deleted || !slices.Equal(atomic.deleted, []string{"other"}) {
		t.Fatalf("unexpected delete %#v", del)
	}
	if steps := h.steps(t, session); len(steps) != 0 {
		t.Fatalf("atomic path journaled saga steps: %#v", steps)
	}
}

func TestDeleteLocationRequiresForceWhenReferenced(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	session := h.session(t, false)
	target := h.mem.Locations[1]

	if _, err := h.m.DeleteLocation(context.Background(), session, target, maintenance.LocationDeleteOptions{}); !errors.Is(err, services.ErrUnsafe) {
		t.Fatalf("expected ErrUnsafe, got %v", err)
	}
	if len(h.mem.Locations) != 3 || len(h.mem.EpisodeLocations) != 4 {
		t.Fatal("refused delete changed the store")
	}

	report, err := h.m.DeleteLocation(context.Background(), session, target, maintenance.LocationDeleteOptions{Force: true})
	if err != nil {
		t.Fatalf("DeleteLocation returned error: %v", err)
	}
	if !report.Deleted || report.LinksRemoved != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	if got := linkKeys(h.mem.EpisodeLocations); !slices.Equal(got, []string{"e1:a", "e2:a"}) {
		t.Fatalf("links = %v", got)
	}
}

func TestDeleteLocationRelinksOnFailure(t *testing.T) {
	h := newHarness(t)
	duplicatePair(h)
	h.mem.FailOn("DeleteLocation", errors.New("permission denied"))

	_, err := h.m.DeleteLocation(context.Background(), h.session(t, false), h.mem.Locations[1], maintenance.LocationDeleteOptions{Force: true})
	if err == nil {
		t.Fatal("expected delete failure")
	}
	if len(h.mem.EpisodeLocations) != 4 {
		t.Fatalf("links not restored: %v", linkKeys(h.mem.EpisodeLocations))
	}
}

func TestResolveLocation(t *testing.T) {
	h := newHarness(t)
	h.mem.Locations = []catalog.Location{{ID: "id-1", Name: "A", Slug: "a-slug"}}
	for _, ref := range []string{"a-slug", "id-1"} {
		loc, err := h.m.ResolveLocation(context.Background(), ref)
		if err != nil || loc.ID != "id-1" {
			t.Fatalf("ResolveLocation(%q) = %#v, %v", ref, loc, err)
		}
	}
	if _, err := h.m.ResolveLocation(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
