// Package pgstore implements store.Store and store.Atomic directly against
// Postgres with pgx. It is the backend to use when multi-row location
// changes must be all-or-nothing.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"oshimaint/internal/catalog"
	"oshimaint/internal/config"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
)

const component = "postgres"

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	celebrityColumns = `id::text AS id, name, coalesce(slug, '') AS slug, coalesce(type, '') AS type,
		coalesce(bio, '') AS bio, coalesce(image_url, '') AS image_url, coalesce(status, '') AS status`
	episodeColumns = `id::text AS id, coalesce(title, '') AS title, coalesce(description, '') AS description,
		coalesce(date::text, '') AS date, coalesce(video_url, '') AS video_url,
		coalesce(thumbnail_url, '') AS thumbnail_url, coalesce(view_count, 0)::bigint AS view_count,
		coalesce(like_count, 0)::bigint AS like_count, coalesce(comment_count, 0)::bigint AS comment_count,
		coalesce(duration, 0)::int AS duration, coalesce(celebrity_id::text, '') AS celebrity_id`
	locationColumns = `id::text AS id, coalesce(name, '') AS name, coalesce(slug, '') AS slug,
		coalesce(address, '') AS address, coalesce(description, '') AS description,
		coalesce(tabelog_url, '') AS tabelog_url, affiliate_info::jsonb AS affiliate_info,
		coalesce(image_url, '') AS image_url, coalesce(image_urls, '{}') AS image_urls,
		coalesce(tags, '{}') AS tags, coalesce(created_at::text, '') AS created_at`
	itemColumns = `id::text AS id, coalesce(name, '') AS name, coalesce(brand, '') AS brand,
		coalesce(category, '') AS category, price::float8 AS price,
		coalesce(purchase_url, '') AS purchase_url, coalesce(celebrity_id::text, '') AS celebrity_id`
)

// Store runs catalog queries over a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the database named by the [postgres] configuration section.
func Open(ctx context.Context, cfg config.Postgres, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "connect", "postgres dsn is required", nil)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "connect", "parse dsn", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, component, "connect", "", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, services.Wrap(services.ErrExternalService, component, "connect", "ping", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{pool: pool, logger: logging.NewComponentLogger(logger, component)}, nil
}

func (s *Store) Name() string { return "postgres" }

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func dbError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, component, operation, "", nil)
	}
	return services.Wrap(services.ErrDatabase, component, operation, "", err)
}

func collect[T any](ctx context.Context, db DBTX, operation, query string, args ...any) ([]T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError(operation, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, dbError(operation, err)
	}
	return out, nil
}

func one[T any](ctx context.Context, db DBTX, operation, query string, args ...any) (*T, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError(operation, err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, dbError(operation, err)
	}
	return row, nil
}

func (s *Store) ListCelebrities(ctx context.Context) ([]catalog.Celebrity, error) {
	return collect[catalog.Celebrity](ctx, s.pool, "list celebrities",
		`SELECT `+celebrityColumns+` FROM celebrities ORDER BY name, id`)
}

func (s *Store) GetCelebrity(ctx context.Context, id string) (*catalog.Celebrity, error) {
	return one[catalog.Celebrity](ctx, s.pool, "get celebrity",
		`SELECT `+celebrityColumns+` FROM celebrities WHERE id::text = $1`, id)
}

func (s *Store) FindCelebrityBySlug(ctx context.Context, slug string) (*catalog.Celebrity, error) {
	return one[catalog.Celebrity](ctx, s.pool, "find celebrity",
		`SELECT `+celebrityColumns+` FROM celebrities WHERE slug = $1 LIMIT 1`, slug)
}

func (s *Store) InsertCelebrity(ctx context.Context, c catalog.Celebrity) (*catalog.Celebrity, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return one[catalog.Celebrity](ctx, s.pool, "insert celebrity",
		`INSERT INTO celebrities (id, name, slug, type, bio, image_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+celebrityColumns,
		c.ID, c.Name, c.Slug, nullIfEmpty(string(c.Type)), nullIfEmpty(c.Bio), nullIfEmpty(c.ImageURL), nullIfEmpty(c.Status))
}

func (s *Store) ListEpisodes(ctx context.Context, celebrityID string) ([]catalog.Episode, error) {
	if celebrityID == "" {
		return collect[catalog.Episode](ctx, s.pool, "list episodes",
			`SELECT `+episodeColumns+` FROM episodes ORDER BY id`)
	}
	return collect[catalog.Episode](ctx, s.pool, "list episodes",
		`SELECT `+episodeColumns+` FROM episodes WHERE celebrity_id::text = $1 ORDER BY id`, celebrityID)
}

func (s *Store) FindEpisodeByVideoURL(ctx context.Context, videoURL string) (*catalog.Episode, error) {
	return one[catalog.Episode](ctx, s.pool, "find episode",
		`SELECT `+episodeColumns+` FROM episodes WHERE video_url = $1 ORDER BY id LIMIT 1`, videoURL)
}

func (s *Store) InsertEpisode(ctx context.Context, e catalog.Episode) (*catalog.Episode, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return one[catalog.Episode](ctx, s.pool, "insert episode",
		`INSERT INTO episodes (id, title, description, date, video_url, thumbnail_url,
			view_count, like_count, comment_count, duration, celebrity_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+episodeColumns,
		e.ID, e.Title, nullIfEmpty(e.Description), dateParam(e.Date), nullIfEmpty(e.VideoURL),
		nullIfEmpty(e.ThumbnailURL), e.ViewCount, e.LikeCount, e.CommentCount, e.Duration, e.CelebrityID)
}

func (s *Store) UpdateEpisodeStats(ctx context.Context, id string, stats catalog.EpisodeStats) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE episodes SET view_count = $2, like_count = $3, comment_count = $4, duration = $5,
			thumbnail_url = coalesce($6, thumbnail_url)
		 WHERE id::text = $1`,
		id, stats.ViewCount, stats.LikeCount, stats.CommentCount, stats.Duration, nullIfEmpty(stats.ThumbnailURL))
	if err != nil {
		return dbError("update episode stats", err)
	}
	return nil
}

func (s *Store) DeleteEpisode(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM episodes WHERE id::text = $1`, id); err != nil {
		return dbError("delete episode", err)
	}
	return nil
}

func (s *Store) ListLocations(ctx context.Context) ([]catalog.Location, error) {
	return collect[catalog.Location](ctx, s.pool, "list locations",
		`SELECT `+locationColumns+` FROM locations ORDER BY id`)
}

func (s *Store) FindLocationBySlug(ctx context.Context, slug string) (*catalog.Location, error) {
	return one[catalog.Location](ctx, s.pool, "find location",
		`SELECT `+locationColumns+` FROM locations WHERE slug = $1 LIMIT 1`, slug)
}

func (s *Store) InsertLocation(ctx context.Context, l catalog.Location) (*catalog.Location, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return one[catalog.Location](ctx, s.pool, "insert location",
		`INSERT INTO locations (id, name, slug, address, description, tabelog_url, affiliate_info,
			image_url, image_urls, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+locationColumns,
		l.ID, l.Name, nullIfEmpty(l.Slug), nullIfEmpty(l.Address), nullIfEmpty(l.Description),
		nullIfEmpty(l.TabelogURL), affiliateParam(l.AffiliateInfo), nullIfEmpty(l.ImageURL), l.ImageURLs, l.Tags)
}

func (s *Store) UpdateLocationAffiliate(ctx context.Context, id, tabelogURL string, info catalog.AffiliateInfo) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE locations SET tabelog_url = $2, affiliate_info = $3 WHERE id::text = $1`,
		id, nullIfEmpty(tabelogURL), affiliateParam(info))
	if err != nil {
		return dbError("update location affiliate", err)
	}
	return nil
}

func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM locations WHERE id::text = $1`, id); err != nil {
		return dbError("delete location", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context) ([]catalog.Item, error) {
	return collect[catalog.Item](ctx, s.pool, "list items",
		`SELECT `+itemColumns+` FROM items ORDER BY id`)
}

func (s *Store) ListEpisodeLocationsByEpisodes(ctx context.Context, episodeIDs []string) ([]catalog.EpisodeLocation, error) {
	return collect[catalog.EpisodeLocation](ctx, s.pool, "list episode locations",
		`SELECT episode_id::text AS episode_id, location_id::text AS location_id
		 FROM episode_locations WHERE episode_id::text = ANY($1)`, episodeIDs)
}

func (s *Store) ListEpisodeLocationsByLocations(ctx context.Context, locationIDs []string) ([]catalog.EpisodeLocation, error) {
	return listLinksByLocations(ctx, s.pool, locationIDs)
}

func listLinksByLocations(ctx context.Context, db DBTX, locationIDs []string) ([]catalog.EpisodeLocation, error) {
	return collect[catalog.EpisodeLocation](ctx, db, "list episode locations",
		`SELECT episode_id::text AS episode_id, location_id::text AS location_id
		 FROM episode_locations WHERE location_id::text = ANY($1)`, locationIDs)
}

func (s *Store) ListEpisodeItemsByEpisodes(ctx context.Context, episodeIDs []string) ([]catalog.EpisodeItem, error) {
	return collect[catalog.EpisodeItem](ctx, s.pool, "list episode items",
		`SELECT episode_id::text AS episode_id, item_id::text AS item_id
		 FROM episode_items WHERE episode_id::text = ANY($1)`, episodeIDs)
}

func (s *Store) InsertEpisodeLocations(ctx context.Context, links []catalog.EpisodeLocation) error {
	return insertLinks(ctx, s.pool, links)
}

func insertLinks(ctx context.Context, db DBTX, links []catalog.EpisodeLocation) error {
	for _, link := range links {
		_, err := db.Exec(ctx,
			`INSERT INTO episode_locations (episode_id, location_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			link.EpisodeID, link.LocationID)
		if err != nil {
			return dbError("insert episode location "+link.Key(), err)
		}
	}
	return nil
}

func (s *Store) DeleteEpisodeLocations(ctx context.Context, links []catalog.EpisodeLocation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dbError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := deleteLinks(ctx, tx, links); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dbError("commit", err)
	}
	return nil
}

func deleteLinks(ctx context.Context, db DBTX, links []catalog.EpisodeLocation) error {
	for _, link := range links {
		_, err := db.Exec(ctx,
			`DELETE FROM episode_locations WHERE episode_id::text = $1 AND location_id::text = $2`,
			link.EpisodeID, link.LocationID)
		if err != nil {
			return dbError("delete episode location "+link.Key(), err)
		}
	}
	return nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func dateParam(value string) any {
	t, ok := catalog.ParseDate(value)
	if !ok {
		return nil
	}
	return t
}

func affiliateParam(info catalog.AffiliateInfo) any {
	if info == nil {
		return nil
	}
	return map[string]json.RawMessage(info)
}
