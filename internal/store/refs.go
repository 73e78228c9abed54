package store

import (
	"context"

	"oshimaint/internal/catalog"
)

// EpisodeReferenceCounts counts episode_locations and episode_items rows per
// episode. Every requested ID is present in the result, zero when unreferenced.
func EpisodeReferenceCounts(ctx context.Context, s Store, episodeIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(episodeIDs))
	for _, id := range episodeIDs {
		counts[id] = 0
	}
	if len(episodeIDs) == 0 {
		return counts, nil
	}
	locations, err := s.ListEpisodeLocationsByEpisodes(ctx, episodeIDs)
	if err != nil {
		return nil, err
	}
	for _, link := range locations {
		counts[link.EpisodeID]++
	}
	items, err := s.ListEpisodeItemsByEpisodes(ctx, episodeIDs)
	if err != nil {
		return nil, err
	}
	for _, link := range items {
		counts[link.EpisodeID]++
	}
	return counts, nil
}

// LocationReferenceCounts counts episode_locations rows per location.
func LocationReferenceCounts(ctx context.Context, s Store, locationIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(locationIDs))
	for _, id := range locationIDs {
		counts[id] = 0
	}
	if len(locationIDs) == 0 {
		return counts, nil
	}
	links, err := s.ListEpisodeLocationsByLocations(ctx, locationIDs)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		counts[link.LocationID]++
	}
	return counts, nil
}

// LocationIDs collects the IDs of locations.
func LocationIDs(locations []catalog.Location) []string {
	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		ids = append(ids, loc.ID)
	}
	return ids
}

// EpisodeIDs collects the IDs of episodes.
func EpisodeIDs(episodes []catalog.Episode) []string {
	ids := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		ids = append(ids, ep.ID)
	}
	return ids
}

// Chunk splits ids into slices of at most size elements. Long IN filters are
// sent in chunks to stay under URL length limits.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 || len(ids) <= size {
		if len(ids) == 0 {
			return nil
		}
		return [][]string{ids}
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
