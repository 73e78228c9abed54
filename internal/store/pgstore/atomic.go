package pgstore

import (
	"context"
	"time"

	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
)

// DeleteLocationCascade removes a location and its episode links in one transaction.
func (s *Store) DeleteLocationCascade(ctx context.Context, locationID string) ([]catalog.EpisodeLocation, error) {
	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, dbError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	links, err := listLinksByLocations(ctx, tx, []string{locationID})
	if err != nil {
		return nil, err
	}
	if err := deleteLinks(ctx, tx, links); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM locations WHERE id::text = $1`, locationID); err != nil {
		return nil, dbError("delete location", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit", err)
	}
	s.logger.Debug("location deleted with links",
		logging.String(logging.FieldRowID, locationID),
		logging.Int("links", len(links)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return links, nil
}

// MergeLocation re-points every episode link of duplicateID at survivorID and
// deletes the duplicate, all in one transaction.
func (s *Store) MergeLocation(ctx context.Context, survivorID, duplicateID string) (int, error) {
	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, dbError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO episode_locations (episode_id, location_id)
		 SELECT episode_id, $1 FROM episode_locations WHERE location_id::text = $2
		 ON CONFLICT DO NOTHING`,
		survivorID, duplicateID)
	if err != nil {
		return 0, dbError("relink episode locations", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM episode_locations WHERE location_id::text = $1`, duplicateID); err != nil {
		return 0, dbError("unlink duplicate", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM locations WHERE id::text = $1`, duplicateID); err != nil {
		return 0, dbError("delete duplicate", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, dbError("commit", err)
	}
	moved := int(tag.RowsAffected())
	s.logger.Debug("locations merged",
		logging.String("survivor_id", survivorID),
		logging.String("duplicate_id", duplicateID),
		logging.Int("moved", moved),
		logging.Duration("elapsed", time.Since(start)),
	)
	return moved, nil
}
