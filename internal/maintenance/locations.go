package maintenance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"oshimaint/internal/catalog"
	"oshimaint/internal/dedupe"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

// LocationCleanReport describes a location cleanup run.
type LocationCleanReport struct {
	Scanned  int                      `json:"scanned"`
	Verdicts []dedupe.LocationVerdict `json:"verdicts"`
	Deleted  []string                 `json:"deleted"`
	// Skipped lists delete candidates that gained a reference before deletion.
	Skipped  []string  `json:"skipped,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

func (r LocationCleanReport) Counts() map[string]int {
	counts := map[string]int{
		"scanned": r.Scanned,
		"deleted": len(r.Deleted),
		"skipped": len(r.Skipped),
		"failed":  len(r.Failures),
	}
	for _, v := range r.Verdicts {
		counts[string(v.Verdict)]++
	}
	return counts
}

// CleanLocations classifies every location and deletes the unreferenced rows
// classified as delete. References are counted again right before each
// delete; a row that gained one is skipped.
func (m *Maintainer) CleanLocations(ctx context.Context, session *Session, opts dedupe.LocationOptions) (LocationCleanReport, error) {
	locations, refs, err := m.locationsWithRefs(ctx)
	if err != nil {
		return LocationCleanReport{}, err
	}
	verdicts := dedupe.ClassifyLocations(locations, refs, opts)
	report := LocationCleanReport{Scanned: len(locations), Verdicts: verdicts, Deleted: []string{}}
	deleteSet := dedupe.DeleteSet(verdicts)
	m.logger(ctx).Info("locations classified",
		logging.Int("scanned", len(locations)),
		logging.Int("delete", len(deleteSet)),
	)
	if session.DryRun {
		return report, nil
	}

	rows := make(map[string]catalog.Location, len(locations))
	for _, loc := range locations {
		rows[loc.ID] = loc
	}
	logger := m.logger(ctx)
	for _, id := range deleteSet {
		if err := m.wait(ctx); err != nil {
			return report, err
		}
		current, err := store.LocationReferenceCounts(ctx, m.Store, []string{id})
		if err != nil {
			report.Failures = append(report.Failures, m.rowFailed(ctx, catalog.TableLocations, id, "location reference check failed", "location_refcheck_failed", err))
			continue
		}
		if current[id] > 0 {
			report.Skipped = append(report.Skipped, id)
			logger.Info("location kept: referenced since classification",
				logging.String(logging.FieldRowID, id),
				logging.Int("references", current[id]),
			)
			continue
		}
		if err := session.Backup(ctx, catalog.TableLocations, id, rows[id]); err != nil {
			return report, err
		}
		if err := m.Store.DeleteLocation(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			report.Failures = append(report.Failures, m.rowFailed(ctx, catalog.TableLocations, id, "location delete failed", "location_delete_failed", err))
			continue
		}
		report.Deleted = append(report.Deleted, id)
		logger.Info("location deleted",
			logging.String(logging.FieldRowID, id),
			logging.String("name", rows[id].Name),
		)
	}
	return report, nil
}

// DuplicateReport lists duplicate location groups and near-miss name pairs.
type DuplicateReport struct {
	Scanned int                    `json:"scanned"`
	Groups  []dedupe.LocationGroup `json:"groups"`
	Similar []dedupe.SimilarPair   `json:"similar,omitempty"`
}

func (r DuplicateReport) Counts() map[string]int {
	duplicates := 0
	for _, g := range r.Groups {
		duplicates += len(g.Duplicates)
	}
	return map[string]int{
		"scanned":    r.Scanned,
		"groups":     len(r.Groups),
		"duplicates": duplicates,
		"similar":    len(r.Similar),
	}
}

// LocationDuplicates reports duplicate groups without changing anything.
// Pairs of differently-keyed names scoring at least similarity are listed
// for manual review; a zero similarity skips that pass.
func (m *Maintainer) LocationDuplicates(ctx context.Context, similarity float64) (DuplicateReport, error) {
	locations, refs, err := m.locationsWithRefs(ctx)
	if err != nil {
		return DuplicateReport{}, err
	}
	report := DuplicateReport{
		Scanned: len(locations),
		Groups:  dedupe.GroupLocationDuplicates(locations, refs),
	}
	if similarity > 0 {
		report.Similar = dedupe.SimilarNames(locations, similarity)
	}
	return report, nil
}

// MergeReport describes a duplicate merge run.
type MergeReport struct {
	Groups     []dedupe.LocationGroup `json:"groups"`
	Merged     []string               `json:"merged"`
	LinksMoved int                    `json:"links_moved"`
	Failures   []Failure              `json:"failures,omitempty"`
}

func (r MergeReport) Counts() map[string]int {
	return map[string]int{
		"groups":      len(r.Groups),
		"merged":      len(r.Merged),
		"links_moved": r.LinksMoved,
		"failed":      len(r.Failures),
	}
}

// MergeLocations folds every duplicate into its group's survivor: episode
// links move to the survivor, then the duplicate is deleted. keys limits the
// merge to the named group keys; empty merges every group.
func (m *Maintainer) MergeLocations(ctx context.Context, session *Session, keys []string) (MergeReport, error) {
	locations, refs, err := m.locationsWithRefs(ctx)
	if err != nil {
		return MergeReport{}, err
	}
	groups := dedupe.GroupLocationDuplicates(locations, refs)
	if len(keys) > 0 {
		groups = slices.DeleteFunc(groups, func(g dedupe.LocationGroup) bool {
			return !slices.Contains(keys, g.Key)
		})
	}
	report := MergeReport{Groups: groups, Merged: []string{}}
	if session.DryRun {
		return report, nil
	}

	for _, group := range groups {
		for _, duplicate := range group.Duplicates {
			if err := m.wait(ctx); err != nil {
				return report, err
			}
			moved, err := m.mergeLocation(ctx, session, group.Survivor, duplicate)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, ErrStranded) {
					return report, err
				}
				report.Failures = append(report.Failures, m.rowFailed(ctx, catalog.TableLocations, duplicate.ID, "location merge failed", "location_merge_failed", err))
				continue
			}
			report.Merged = append(report.Merged, duplicate.ID)
			report.LinksMoved += moved
		}
	}
	return report, nil
}

// mergeLocation moves duplicate's links onto survivor and deletes duplicate.
// It returns the number of links created on survivor.
func (m *Maintainer) mergeLocation(ctx context.Context, session *Session, survivor, duplicate catalog.Location) (int, error) {
	if survivor.ID == duplicate.ID {
		return 0, services.Wrap(services.ErrValidation, "maintenance", "merge location", "survivor and duplicate are the same row", nil)
	}
	dupLinks, err := m.Store.ListEpisodeLocationsByLocations(ctx, []string{duplicate.ID})
	if err != nil {
		return 0, services.Wrap(services.ErrDatabase, "maintenance", "list duplicate links", duplicate.ID, err)
	}
	if err := session.Backup(ctx, catalog.TableLocations, duplicate.ID, duplicate); err != nil {
		return 0, err
	}
	if err := backupLinks(ctx, session, dupLinks); err != nil {
		return 0, err
	}
	logger := m.logger(ctx).With(
		logging.String("survivor_id", survivor.ID),
		logging.String(logging.FieldRowID, duplicate.ID),
	)

	if atomic, ok := m.Store.(store.Atomic); ok {
		moved, err := atomic.MergeLocation(ctx, survivor.ID, duplicate.ID)
		if err != nil {
			return 0, err
		}
		logger.Info("location merged", logging.Int("links_moved", moved), logging.String("mode", "transaction"))
		return moved, nil
	}

	survivorLinks, err := m.Store.ListEpisodeLocationsByLocations(ctx, []string{survivor.ID})
	if err != nil {
		return 0, services.Wrap(services.ErrDatabase, "maintenance", "list survivor links", survivor.ID, err)
	}
	linked := make(map[string]bool, len(survivorLinks))
	for _, link := range survivorLinks {
		linked[link.EpisodeID] = true
	}
	var moved []catalog.EpisodeLocation
	for _, link := range dupLinks {
		if !linked[link.EpisodeID] {
			linked[link.EpisodeID] = true
			moved = append(moved, catalog.EpisodeLocation{EpisodeID: link.EpisodeID, LocationID: survivor.ID})
		}
	}

	steps := []sagaStep{
		{
			name: "link_survivor",
			do:   func(ctx context.Context) error { return m.Store.InsertEpisodeLocations(ctx, moved) },
			undo: func(ctx context.Context) error { return m.Store.DeleteEpisodeLocations(ctx, moved) },
		},
		{
			name: "unlink_duplicate",
			do:   func(ctx context.Context) error { return m.Store.DeleteEpisodeLocations(ctx, dupLinks) },
			undo: func(ctx context.Context) error { return m.Store.InsertEpisodeLocations(ctx, dupLinks) },
		},
		{
			name: "delete_duplicate",
			do:   func(ctx context.Context) error { return m.Store.DeleteLocation(ctx, duplicate.ID) },
		},
	}
	if err := m.runSaga(ctx, session, "merge_location", duplicate.ID, steps); err != nil {
		return 0, err
	}
	logger.Info("location merged", logging.Int("links_moved", len(moved)), logging.String("mode", "saga"))
	return len(moved), nil
}

// LocationDeleteOptions scopes DeleteLocation.
type LocationDeleteOptions struct {
	// Force deletes a referenced location together with its episode links.
	Force bool
}

// LocationDeleteReport describes a single location deletion.
type LocationDeleteReport struct {
	Location     catalog.Location          `json:"location"`
	Links        []catalog.EpisodeLocation `json:"links"`
	Deleted      bool                      `json:"deleted"`
	LinksRemoved int                       `json:"links_removed"`
}

func (r LocationDeleteReport) Counts() map[string]int {
	deleted := 0
	if r.Deleted {
		deleted = 1
	}
	return map[string]int{
		"references":    len(r.Links),
		"deleted":       deleted,
		"links_removed": r.LinksRemoved,
	}
}

// DeleteLocation removes one location. A referenced location is refused
// unless Force is set, in which case its links are removed with it: inside
// one transaction when the store supports it, otherwise as a journaled saga
// that re-links on failure.
func (m *Maintainer) DeleteLocation(ctx context.Context, session *Session, loc catalog.Location, opts LocationDeleteOptions) (LocationDeleteReport, error) {
	links, err := m.Store.ListEpisodeLocationsByLocations(ctx, []string{loc.ID})
	if err != nil {
		return LocationDeleteReport{}, services.Wrap(services.ErrDatabase, "maintenance", "list location links", loc.ID, err)
	}
	report := LocationDeleteReport{Location: loc, Links: links}
	if len(links) > 0 && !opts.Force {
		return report, services.Wrap(services.ErrUnsafe, "maintenance", "delete location",
			fmt.Sprintf("%s is referenced by %d episodes; merge it or pass --force", loc.ID, len(links)), nil)
	}
	if session.DryRun {
		return report, nil
	}

	if err := session.Backup(ctx, catalog.TableLocations, loc.ID, loc); err != nil {
		return report, err
	}
	if err := backupLinks(ctx, session, links); err != nil {
		return report, err
	}

	if atomic, ok := m.Store.(store.Atomic); ok {
		removed, err := atomic.DeleteLocationCascade(ctx, loc.ID)
		if err != nil {
			return report, err
		}
		report.Deleted, report.LinksRemoved = true, len(removed)
		return report, nil
	}

	steps := []sagaStep{
		{
			name: "unlink",
			do:   func(ctx context.Context) error { return m.Store.DeleteEpisodeLocations(ctx, links) },
			undo: func(ctx context.Context) error { return m.Store.InsertEpisodeLocations(ctx, links) },
		},
		{
			name: "delete",
			do:   func(ctx context.Context) error { return m.Store.DeleteLocation(ctx, loc.ID) },
		},
	}
	if err := m.runSaga(ctx, session, "delete_location", loc.ID, steps); err != nil {
		return report, err
	}
	report.Deleted, report.LinksRemoved = true, len(links)
	m.logger(ctx).Info("location deleted",
		logging.String(logging.FieldRowID, loc.ID),
		logging.Int("links_removed", len(links)),
	)
	return report, nil
}

// ResolveLocation finds a location by slug, falling back to its ID.
func (m *Maintainer) ResolveLocation(ctx context.Context, ref string) (catalog.Location, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return catalog.Location{}, services.Wrap(services.ErrValidation, "maintenance", "resolve location", "location id or slug is required", nil)
	}
	loc, err := m.Store.FindLocationBySlug(ctx, ref)
	if err == nil {
		return *loc, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return catalog.Location{}, err
	}
	locations, err := m.Store.ListLocations(ctx)
	if err != nil {
		return catalog.Location{}, services.Wrap(services.ErrDatabase, "maintenance", "list locations", "", err)
	}
	for _, candidate := range locations {
		if candidate.ID == ref {
			return candidate, nil
		}
	}
	return catalog.Location{}, services.Wrap(services.ErrNotFound, "maintenance", "resolve location", ref, nil)
}

func (m *Maintainer) locationsWithRefs(ctx context.Context) ([]catalog.Location, map[string]int, error) {
	locations, err := m.Store.ListLocations(ctx)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrDatabase, "maintenance", "list locations", "", err)
	}
	refs, err := store.LocationReferenceCounts(ctx, m.Store, store.LocationIDs(locations))
	if err != nil {
		return nil, nil, services.Wrap(services.ErrDatabase, "maintenance", "count location references", "", err)
	}
	return locations, refs, nil
}
