package storetest

import (
	"context"
	"slices"

	"oshimaint/internal/catalog"
)

// AtomicMemory adds the transactional location operations to Memory.
type AtomicMemory struct {
	*Memory
}

// NewAtomic returns an empty store implementing store.Atomic.
func NewAtomic() *AtomicMemory {
	return &AtomicMemory{Memory: New()}
}

func (m *AtomicMemory) DeleteLocationCascade(_ context.Context, locationID string) ([]catalog.EpisodeLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteLocationCascade"); err != nil {
		return nil, err
	}
	var removed []catalog.EpisodeLocation
	m.EpisodeLocations = slices.DeleteFunc(m.EpisodeLocations, func(link catalog.EpisodeLocation) bool {
		if link.LocationID == locationID {
			removed = append(removed, link)
			return true
		}
		return false
	})
	m.Locations = slices.DeleteFunc(m.Locations, func(loc catalog.Location) bool { return loc.ID == locationID })
	return removed, nil
}

func (m *AtomicMemory) MergeLocation(_ context.Context, survivorID, duplicateID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("MergeLocation"); err != nil {
		return 0, err
	}
	moved := 0
	var kept []catalog.EpisodeLocation
	for _, link := range m.EpisodeLocations {
		if link.LocationID != duplicateID {
			kept = append(kept, link)
		}
	}
	for _, link := range m.EpisodeLocations {
		if link.LocationID != duplicateID {
			continue
		}
		relinked := catalog.EpisodeLocation{EpisodeID: link.EpisodeID, LocationID: survivorID}
		if !slices.Contains(kept, relinked) {
			kept = append(kept, relinked)
			moved++
		}
	}
	m.EpisodeLocations = kept
	m.Locations = slices.DeleteFunc(m.Locations, func(loc catalog.Location) bool { return loc.ID == duplicateID })
	return moved, nil
}
