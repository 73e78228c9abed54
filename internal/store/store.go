// Package store defines the database operations maintenance commands run
// against the fan-content catalog. Backends live in subpackages: supastore
// talks to Supabase PostgREST, pgstore to Postgres directly.
package store

import (
	"context"
	"encoding/json"

	"oshimaint/internal/catalog"
)

// Store is the catalog CRUD surface. Lookups that find nothing return an
// error wrapping services.ErrNotFound.
type Store interface {
	// Name identifies the backend in logs and reports.
	Name() string

	ListCelebrities(ctx context.Context) ([]catalog.Celebrity, error)
	GetCelebrity(ctx context.Context, id string) (*catalog.Celebrity, error)
	FindCelebrityBySlug(ctx context.Context, slug string) (*catalog.Celebrity, error)
	InsertCelebrity(ctx context.Context, celebrity catalog.Celebrity) (*catalog.Celebrity, error)

	// ListEpisodes returns every episode, or only those of celebrityID when it is set.
	ListEpisodes(ctx context.Context, celebrityID string) ([]catalog.Episode, error)
	FindEpisodeByVideoURL(ctx context.Context, videoURL string) (*catalog.Episode, error)
	InsertEpisode(ctx context.Context, episode catalog.Episode) (*catalog.Episode, error)
	UpdateEpisodeStats(ctx context.Context, id string, stats catalog.EpisodeStats) error
	DeleteEpisode(ctx context.Context, id string) error

	ListLocations(ctx context.Context) ([]catalog.Location, error)
	FindLocationBySlug(ctx context.Context, slug string) (*catalog.Location, error)
	InsertLocation(ctx context.Context, location catalog.Location) (*catalog.Location, error)
	UpdateLocationAffiliate(ctx context.Context, id, tabelogURL string, info catalog.AffiliateInfo) error
	DeleteLocation(ctx context.Context, id string) error

	ListItems(ctx context.Context) ([]catalog.Item, error)

	ListEpisodeLocationsByEpisodes(ctx context.Context, episodeIDs []string) ([]catalog.EpisodeLocation, error)
	ListEpisodeLocationsByLocations(ctx context.Context, locationIDs []string) ([]catalog.EpisodeLocation, error)
	InsertEpisodeLocations(ctx context.Context, links []catalog.EpisodeLocation) error
	DeleteEpisodeLocations(ctx context.Context, links []catalog.EpisodeLocation) error
	ListEpisodeItemsByEpisodes(ctx context.Context, episodeIDs []string) ([]catalog.EpisodeItem, error)

	// RestoreRow re-inserts a row captured in a journal backup.
	RestoreRow(ctx context.Context, table string, payload json.RawMessage) error

	Close()
}

// Atomic is implemented by backends that can run multi-row location changes
// inside one database transaction.
type Atomic interface {
	// DeleteLocationCascade removes a location together with its episode links
	// and returns the links it removed.
	DeleteLocationCascade(ctx context.Context, locationID string) ([]catalog.EpisodeLocation, error)
	// MergeLocation moves the episode links of duplicateID onto survivorID and
	// deletes the duplicate. It returns the number of links created on the survivor.
	MergeLocation(ctx context.Context, survivorID, duplicateID string) (int, error)
}
