package catalog

// Table names in the remote database.
const (
	TableCelebrities      = "celebrities"
	TableEpisodes         = "episodes"
	TableLocations        = "locations"
	TableItems            = "items"
	TableEpisodeLocations = "episode_locations"
	TableEpisodeItems     = "episode_items"
)

// RestorableTables lists tables whose rows may be re-inserted from a journal backup.
var RestorableTables = []string{
	TableCelebrities,
	TableEpisodes,
	TableLocations,
	TableItems,
	TableEpisodeLocations,
	TableEpisodeItems,
}

// IsRestorable reports whether table is a known catalog table.
func IsRestorable(table string) bool {
	for _, name := range RestorableTables {
		if name == table {
			return true
		}
	}
	return false
}
