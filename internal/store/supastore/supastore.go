// Package supastore implements store.Store over the Supabase PostgREST API.
//
// PostgREST has no multi-request transactions, so this backend does not
// implement store.Atomic; callers fall back to journaled sagas.
package supastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"oshimaint/internal/catalog"
	"oshimaint/internal/config"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

const (
	component = "supabase"
	// inChunkSize bounds the IDs per in.(...) filter so request URLs stay short.
	inChunkSize = 100
)

var (
	ascending = &postgrest.OrderOpts{Ascending: true}
	byID      = []string{"id"}
)

// junctionOrder is the full composite key of each junction table. Offset
// paging needs a total order, and rows inside an in.(...) chunk tie on the
// filtered column.
var junctionOrder = map[string][]string{
	catalog.TableEpisodeLocations: {"episode_id", "location_id"},
	catalog.TableEpisodeItems:     {"episode_id", "item_id"},
}

// conflictColumns are the upsert keys used when restoring backups.
var conflictColumns = map[string]string{
	catalog.TableCelebrities:      "id",
	catalog.TableEpisodes:         "id",
	catalog.TableLocations:        "id",
	catalog.TableItems:            "id",
	catalog.TableEpisodeLocations: "episode_id,location_id",
	catalog.TableEpisodeItems:     "episode_id,item_id",
}

// Store talks to Supabase with the service-role key.
type Store struct {
	client   *supabase.Client
	pageSize int
	logger   *slog.Logger
}

// New builds a Store from the [supabase] configuration section.
func New(cfg config.Supabase, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.ServiceRoleKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "connect", "supabase url and service role key are required", nil)
	}
	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.ServiceRoleKey, &supabase.ClientOptions{Schema: cfg.Schema})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "connect", "create client", err)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		client:   client,
		pageSize: pageSize,
		logger:   logger.With(logging.String(logging.FieldComponent, component)),
	}, nil
}

func (s *Store) Name() string { return "supabase" }

// Close is a no-op; the HTTP client holds no per-store resources.
func (s *Store) Close() {}

func dbError(operation string, err error) error {
	return services.Wrap(services.ErrDatabase, component, operation, "", err)
}

func notFound(operation, key string) error {
	return services.Wrap(services.ErrNotFound, component, operation, key, nil)
}

// listAll pages through a table ordered by orderColumns, which must be unique
// per row. filter may narrow the query.
func listAll[T any](ctx context.Context, s *Store, table string, orderColumns []string, filter func(*postgrest.FilterBuilder) *postgrest.FilterBuilder) ([]T, error) {
	var all []T
	for from := 0; ; from += s.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		query := s.client.From(table).Select("*", "", false)
		if filter != nil {
			query = filter(query)
		}
		for _, column := range orderColumns {
			query = query.Order(column, ascending)
		}
		var page []T
		_, err := query.
			Range(from, from+s.pageSize-1, "").
			ExecuteTo(&page)
		if err != nil {
			return nil, dbError("list "+table, err)
		}
		all = append(all, page...)
		s.logger.Debug("fetched page",
			logging.String(logging.FieldTable, table),
			logging.Int("offset", from),
			logging.Int("rows", len(page)),
		)
		if len(page) < s.pageSize {
			return all, nil
		}
	}
}

func first[T any](s *Store, table, column, value string) (*T, error) {
	var rows []T
	_, err := s.client.From(table).
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, dbError("find "+table, err)
	}
	if len(rows) == 0 {
		return nil, notFound("find "+table, column+"="+value)
	}
	return &rows[0], nil
}

func insertOne[T any](s *Store, table string, row T) (*T, error) {
	var rows []T
	_, err := s.client.From(table).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, dbError("insert "+table, err)
	}
	if len(rows) == 0 {
		return nil, dbError("insert "+table, fmt.Errorf("no row returned"))
	}
	return &rows[0], nil
}

func (s *Store) ListCelebrities(ctx context.Context) ([]catalog.Celebrity, error) {
	return listAll[catalog.Celebrity](ctx, s, catalog.TableCelebrities, []string{"name", "id"}, nil)
}

func (s *Store) GetCelebrity(_ context.Context, id string) (*catalog.Celebrity, error) {
	return first[catalog.Celebrity](s, catalog.TableCelebrities, "id", id)
}

func (s *Store) FindCelebrityBySlug(_ context.Context, slug string) (*catalog.Celebrity, error) {
	return first[catalog.Celebrity](s, catalog.TableCelebrities, "slug", slug)
}

func (s *Store) InsertCelebrity(_ context.Context, celebrity catalog.Celebrity) (*catalog.Celebrity, error) {
	return insertOne(s, catalog.TableCelebrities, celebrity)
}

func (s *Store) ListEpisodes(ctx context.Context, celebrityID string) ([]catalog.Episode, error) {
	var filter func(*postgrest.FilterBuilder) *postgrest.FilterBuilder
	if celebrityID != "" {
		filter = func(q *postgrest.FilterBuilder) *postgrest.FilterBuilder {
			return q.Eq("celebrity_id", celebrityID)
		}
	}
	return listAll[catalog.Episode](ctx, s, catalog.TableEpisodes, byID, filter)
}

func (s *Store) FindEpisodeByVideoURL(_ context.Context, videoURL string) (*catalog.Episode, error) {
	return first[catalog.Episode](s, catalog.TableEpisodes, "video_url", videoURL)
}

func (s *Store) InsertEpisode(_ context.Context, episode catalog.Episode) (*catalog.Episode, error) {
	return insertOne(s, catalog.TableEpisodes, episode)
}

func (s *Store) UpdateEpisodeStats(_ context.Context, id string, stats catalog.EpisodeStats) error {
	_, _, err := s.client.From(catalog.TableEpisodes).
		Update(stats, "minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return dbError("update episode stats", err)
	}
	return nil
}

func (s *Store) DeleteEpisode(_ context.Context, id string) error {
	_, _, err := s.client.From(catalog.TableEpisodes).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return dbError("delete episode", err)
	}
	return nil
}

func (s *Store) ListLocations(ctx context.Context) ([]catalog.Location, error) {
	return listAll[catalog.Location](ctx, s, catalog.TableLocations, byID, nil)
}

func (s *Store) FindLocationBySlug(_ context.Context, slug string) (*catalog.Location, error) {
	return first[catalog.Location](s, catalog.TableLocations, "slug", slug)
}

func (s *Store) InsertLocation(_ context.Context, location catalog.Location) (*catalog.Location, error) {
	return insertOne(s, catalog.TableLocations, location)
}

func (s *Store) UpdateLocationAffiliate(_ context.Context, id, tabelogURL string, info catalog.AffiliateInfo) error {
	payload := map[string]any{
		"tabelog_url":    nullable(tabelogURL),
		"affiliate_info": info,
	}
	_, _, err := s.client.From(catalog.TableLocations).
		Update(payload, "minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return dbError("update location affiliate", err)
	}
	return nil
}

func (s *Store) DeleteLocation(_ context.Context, id string) error {
	_, _, err := s.client.From(catalog.TableLocations).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return dbError("delete location", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context) ([]catalog.Item, error) {
	return listAll[catalog.Item](ctx, s, catalog.TableItems, byID, nil)
}

func (s *Store) ListEpisodeLocationsByEpisodes(ctx context.Context, episodeIDs []string) ([]catalog.EpisodeLocation, error) {
	return listIn[catalog.EpisodeLocation](ctx, s, catalog.TableEpisodeLocations, "episode_id", episodeIDs)
}

func (s *Store) ListEpisodeLocationsByLocations(ctx context.Context, locationIDs []string) ([]catalog.EpisodeLocation, error) {
	return listIn[catalog.EpisodeLocation](ctx, s, catalog.TableEpisodeLocations, "location_id", locationIDs)
}

func (s *Store) ListEpisodeItemsByEpisodes(ctx context.Context, episodeIDs []string) ([]catalog.EpisodeItem, error) {
	return listIn[catalog.EpisodeItem](ctx, s, catalog.TableEpisodeItems, "episode_id", episodeIDs)
}

func listIn[T any](ctx context.Context, s *Store, table, column string, ids []string) ([]T, error) {
	var all []T
	for _, chunk := range store.Chunk(ids, inChunkSize) {
		rows, err := listAll[T](ctx, s, table, junctionOrder[table], func(q *postgrest.FilterBuilder) *postgrest.FilterBuilder {
			return q.In(column, chunk)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (s *Store) InsertEpisodeLocations(_ context.Context, links []catalog.EpisodeLocation) error {
	if len(links) == 0 {
		return nil
	}
	_, _, err := s.client.From(catalog.TableEpisodeLocations).
		Insert(links, true, conflictColumns[catalog.TableEpisodeLocations], "minimal", "").
		Execute()
	if err != nil {
		return dbError("insert episode locations", err)
	}
	return nil
}

// DeleteEpisodeLocations removes links one request at a time; a failure
// leaves the earlier deletions in place.
func (s *Store) DeleteEpisodeLocations(ctx context.Context, links []catalog.EpisodeLocation) error {
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _, err := s.client.From(catalog.TableEpisodeLocations).
			Delete("minimal", "").
			Eq("episode_id", link.EpisodeID).
			Eq("location_id", link.LocationID).
			Execute()
		if err != nil {
			return dbError("delete episode location "+link.Key(), err)
		}
	}
	return nil
}

// RestoreRow upserts a backed-up row so restoring an updated row overwrites
// the current values.
func (s *Store) RestoreRow(_ context.Context, table string, payload json.RawMessage) error {
	onConflict, ok := conflictColumns[table]
	if !ok {
		return services.Wrap(services.ErrValidation, component, "restore", fmt.Sprintf("table %q is not restorable", table), nil)
	}
	if !json.Valid(payload) {
		return services.Wrap(services.ErrValidation, component, "restore", "backup payload is not valid JSON", nil)
	}
	_, _, err := s.client.From(table).
		Insert(payload, true, onConflict, "minimal", "").
		Execute()
	if err != nil {
		return dbError("restore "+table, err)
	}
	return nil
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
