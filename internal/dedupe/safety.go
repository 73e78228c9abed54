package dedupe

// Split partitions candidate IDs by whether deleting them is safe.
type Split struct {
	Safe   []string `json:"safe"`
	Unsafe []string `json:"unsafe"`
}

// SafeDelete keeps only IDs with zero junction-table references. An ID
// missing from refCounts has an unknown reference count and is unsafe.
// Duplicate IDs collapse to their first occurrence.
func SafeDelete(candidateIDs []string, refCounts map[string]int) Split {
	var split Split
	seen := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := refCounts[id]; ok && n == 0 {
			split.Safe = append(split.Safe, id)
			continue
		}
		split.Unsafe = append(split.Unsafe, id)
	}
	return split
}
