// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"oshimaint/internal/catalog"
	"oshimaint/internal/services"
)

// Memory is a mutex-guarded in-memory catalog. Failures can be injected per
// operation name through FailOn; each injected error fires once.
type Memory struct {
	mu sync.Mutex

	Celebrities      []catalog.Celebrity
	Episodes         []catalog.Episode
	Locations        []catalog.Location
	Items            []catalog.Item
	EpisodeLocations []catalog.EpisodeLocation
	EpisodeItems     []catalog.EpisodeItem

	failOn map[string][]error
	calls  []string
}

// New returns an empty store.
func New() *Memory {
	return &Memory{failOn: make(map[string][]error)}
}

// FailOn queues err to be returned by the next call to op, for example
// "DeleteLocation" or "InsertEpisodeLocations".
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[op] = append(m.failOn[op], err)
}

// Calls lists operation names in invocation order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func (m *Memory) enter(op string) error {
	m.calls = append(m.calls, op)
	queued := m.failOn[op]
	if len(queued) == 0 {
		return nil
	}
	m.failOn[op] = queued[1:]
	return queued[0]
}

func notFound(what, key string) error {
	return services.Wrap(services.ErrNotFound, "memory", what, key, nil)
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() {}

func (m *Memory) ListCelebrities(_ context.Context) ([]catalog.Celebrity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListCelebrities"); err != nil {
		return nil, err
	}
	return slices.Clone(m.Celebrities), nil
}

func (m *Memory) GetCelebrity(_ context.Context, id string) (*catalog.Celebrity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetCelebrity"); err != nil {
		return nil, err
	}
	for _, c := range m.Celebrities {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, notFound("get celebrity", id)
}

func (m *Memory) FindCelebrityBySlug(_ context.Context, slug string) (*catalog.Celebrity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindCelebrityBySlug"); err != nil {
		return nil, err
	}
	for _, c := range m.Celebrities {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, notFound("find celebrity", slug)
}

func (m *Memory) InsertCelebrity(_ context.Context, celebrity catalog.Celebrity) (*catalog.Celebrity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertCelebrity"); err != nil {
		return nil, err
	}
	if celebrity.ID == "" {
		celebrity.ID = uuid.NewString()
	}
	m.Celebrities = append(m.Celebrities, celebrity)
	return &celebrity, nil
}

func (m *Memory) ListEpisodes(_ context.Context, celebrityID string) ([]catalog.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListEpisodes"); err != nil {
		return nil, err
	}
	out := make([]catalog.Episode, 0, len(m.Episodes))
	for _, ep := range m.Episodes {
		if celebrityID == "" || ep.CelebrityID == celebrityID {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (m *Memory) FindEpisodeByVideoURL(_ context.Context, videoURL string) (*catalog.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindEpisodeByVideoURL"); err != nil {
		return nil, err
	}
	for _, ep := range m.Episodes {
		if ep.VideoURL == videoURL {
			return &ep, nil
		}
	}
	return nil, notFound("find episode", videoURL)
}

func (m *Memory) InsertEpisode(_ context.Context, episode catalog.Episode) (*catalog.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertEpisode"); err != nil {
		return nil, err
	}
	if episode.ID == "" {
		episode.ID = uuid.NewString()
	}
	m.Episodes = append(m.Episodes, episode)
	return &episode, nil
}

func (m *Memory) UpdateEpisodeStats(_ context.Context, id string, stats catalog.EpisodeStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateEpisodeStats"); err != nil {
		return err
	}
	for i := range m.Episodes {
		if m.Episodes[i].ID != id {
			continue
		}
		ep := &m.Episodes[i]
		ep.ViewCount = stats.ViewCount
		ep.LikeCount = stats.LikeCount
		ep.CommentCount = stats.CommentCount
		ep.Duration = stats.Duration
		if stats.ThumbnailURL != "" {
			ep.ThumbnailURL = stats.ThumbnailURL
		}
		return nil
	}
	return notFound("update episode", id)
}

func (m *Memory) DeleteEpisode(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteEpisode"); err != nil {
		return err
	}
	m.Episodes = slices.DeleteFunc(m.Episodes, func(ep catalog.Episode) bool { return ep.ID == id })
	return nil
}

func (m *Memory) ListLocations(_ context.Context) ([]catalog.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListLocations"); err != nil {
		return nil, err
	}
	return slices.Clone(m.Locations), nil
}

func (m *Memory) FindLocationBySlug(_ context.Context, slug string) (*catalog.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindLocationBySlug"); err != nil {
		return nil, err
	}
	for _, loc := range m.Locations {
		if loc.Slug == slug {
			return &loc, nil
		}
	}
	return nil, notFound("find location", slug)
}

func (m *Memory) InsertLocation(_ context.Context, location catalog.Location) (*catalog.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertLocation"); err != nil {
		return nil, err
	}
	if location.ID == "" {
		location.ID = uuid.NewString()
	}
	m.Locations = append(m.Locations, location)
	return &location, nil
}

func (m *Memory) UpdateLocationAffiliate(_ context.Context, id, tabelogURL string, info catalog.AffiliateInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateLocationAffiliate"); err != nil {
		return err
	}
	for i := range m.Locations {
		if m.Locations[i].ID == id {
			m.Locations[i].TabelogURL = tabelogURL
			m.Locations[i].AffiliateInfo = info.Clone()
			return nil
		}
	}
	return notFound("update location", id)
}

func (m *Memory) DeleteLocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteLocation"); err != nil {
		return err
	}
	m.Locations = slices.DeleteFunc(m.Locations, func(loc catalog.Location) bool { return loc.ID == id })
	return nil
}

func (m *Memory) ListItems(_ context.Context) ([]catalog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListItems"); err != nil {
		return nil, err
	}
	return slices.Clone(m.Items), nil
}

func (m *Memory) ListEpisodeLocationsByEpisodes(_ context.Context, episodeIDs []string) ([]catalog.EpisodeLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListEpisodeLocationsByEpisodes"); err != nil {
		return nil, err
	}
	var out []catalog.EpisodeLocation
	for _, link := range m.EpisodeLocations {
		if slices.Contains(episodeIDs, link.EpisodeID) {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *Memory) ListEpisodeLocationsByLocations(_ context.Context, locationIDs []string) ([]catalog.EpisodeLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListEpisodeLocationsByLocations"); err != nil {
		return nil, err
	}
	var out []catalog.EpisodeLocation
	for _, link := range m.EpisodeLocations {
		if slices.Contains(locationIDs, link.LocationID) {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *Memory) InsertEpisodeLocations(_ context.Context, links []catalog.EpisodeLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertEpisodeLocations"); err != nil {
		return err
	}
	for _, link := range links {
		if !slices.Contains(m.EpisodeLocations, link) {
			m.EpisodeLocations = append(m.EpisodeLocations, link)
		}
	}
	return nil
}

func (m *Memory) DeleteEpisodeLocations(_ context.Context, links []catalog.EpisodeLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteEpisodeLocations"); err != nil {
		return err
	}
	m.EpisodeLocations = slices.DeleteFunc(m.EpisodeLocations, func(link catalog.EpisodeLocation) bool {
		return slices.Contains(links, link)
	})
	return nil
}

func (m *Memory) ListEpisodeItemsByEpisodes(_ context.Context, episodeIDs []string) ([]catalog.EpisodeItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListEpisodeItemsByEpisodes"); err != nil {
		return nil, err
	}
	var out []catalog.EpisodeItem
	for _, link := range m.EpisodeItems {
		if slices.Contains(episodeIDs, link.EpisodeID) {
			out = append(out, link)
		}
	}
	return out, nil
}

func (m *Memory) RestoreRow(_ context.Context, table string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RestoreRow"); err != nil {
		return err
	}
	var err error
	switch table {
	case catalog.TableCelebrities:
		err = restoreInto(payload, &m.Celebrities, func(c catalog.Celebrity) string { return c.ID })
	case catalog.TableEpisodes:
		err = restoreInto(payload, &m.Episodes, func(e catalog.Episode) string { return e.ID })
	case catalog.TableLocations:
		err = restoreInto(payload, &m.Locations, func(l catalog.Location) string { return l.ID })
	case catalog.TableItems:
		err = restoreInto(payload, &m.Items, func(i catalog.Item) string { return i.ID })
	case catalog.TableEpisodeLocations:
		err = restoreInto(payload, &m.EpisodeLocations, catalog.EpisodeLocation.Key)
	case catalog.TableEpisodeItems:
		err = restoreInto(payload, &m.EpisodeItems, catalog.EpisodeItem.Key)
	default:
		return services.Wrap(services.ErrValidation, "memory", "restore", fmt.Sprintf("table %q is not restorable", table), nil)
	}
	return err
}

// restoreInto upserts the decoded row, replacing any row with the same key.
func restoreInto[T any](payload json.RawMessage, rows *[]T, key func(T) string) error {
	var row T
	if err := json.Unmarshal(payload, &row); err != nil {
		return fmt.Errorf("decode backup row: %w", err)
	}
	for i, existing := range *rows {
		if key(existing) == key(row) {
			(*rows)[i] = row
			return nil
		}
	}
	*rows = append(*rows, row)
	return nil
}
