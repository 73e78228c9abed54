package dedupe

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"oshimaint/internal/catalog"
	"oshimaint/internal/tabelog"
	"oshimaint/internal/textutil"
)

// Verdict is the tri-state outcome for a location row.
type Verdict string

const (
	VerdictDelete Verdict = "delete"
	VerdictReview Verdict = "review"
	VerdictKeep   Verdict = "keep"
)

// LocationOptions tunes ClassifyLocations.
type LocationOptions struct {
	// DeletePatterns mark names that are never real places, such as
	// "covered by ..." credits, timestamps or bare station names.
	DeletePatterns   []*regexp.Regexp
	PlaceholderNames []string
	MinNameRunes     int
}

// CompileLocationOptions compiles configured patterns.
func CompileLocationOptions(patterns, placeholders []string, minNameRunes int) (LocationOptions, error) {
	opts := LocationOptions{PlaceholderNames: placeholders, MinNameRunes: minNameRunes}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return LocationOptions{}, fmt.Errorf("compile location pattern %q: %w", p, err)
		}
		opts.DeletePatterns = append(opts.DeletePatterns, re)
	}
	return opts, nil
}

// LocationVerdict is the classification of one location.
type LocationVerdict struct {
	Location   catalog.Location `json:"location"`
	Verdict    Verdict          `json:"verdict"`
	Reasons    []string         `json:"reasons,omitempty"`
	References int              `json:"references"`
}

// ClassifyLocations assigns delete, review or keep to every location.
//
//   - delete: unreferenced and either matching a delete pattern or carrying a
//     suspicious name (too short, or a placeholder like 不明).
//   - review: referenced but flagged, or unreferenced without a flag.
//   - keep: referenced and unflagged.
//
// A location whose reference count is missing from refCounts is treated as
// referenced.
func ClassifyLocations(locations []catalog.Location, refCounts map[string]int, opts LocationOptions) []LocationVerdict {
	placeholders := make(map[string]bool, len(opts.PlaceholderNames))
	for _, p := range opts.PlaceholderNames {
		if key := textutil.NormalizeKey(p); key != "" {
			placeholders[key] = true
		}
	}

	out := make([]LocationVerdict, 0, len(locations))
	for _, loc := range locations {
		refs, known := refCounts[loc.ID]
		referenced := !known || refs > 0

		var reasons []string
		name := strings.TrimSpace(loc.Name)
		for _, re := range opts.DeletePatterns {
			if re.MatchString(name) {
				reasons = append(reasons, "matches "+re.String())
			}
		}
		if textutil.RuneLen(name) < opts.MinNameRunes {
			reasons = append(reasons, "name too short")
		}
		if placeholders[textutil.NormalizeKey(name)] {
			reasons = append(reasons, "placeholder name")
		}

		verdict := VerdictKeep
		switch {
		case len(reasons) > 0 && !referenced:
			verdict = VerdictDelete
		case len(reasons) > 0:
			verdict = VerdictReview
			if known {
				reasons = append(reasons, fmt.Sprintf("referenced by %d episodes", refs))
			}
		case !referenced:
			verdict = VerdictReview
			reasons = append(reasons, "unreferenced")
		}
		if !known {
			reasons = append(reasons, "reference count unknown")
		}
		out = append(out, LocationVerdict{Location: loc, Verdict: verdict, Reasons: reasons, References: refs})
	}
	return out
}

// DeleteSet returns the IDs classified as delete.
func DeleteSet(verdicts []LocationVerdict) []string {
	var ids []string
	for _, v := range verdicts {
		if v.Verdict == VerdictDelete {
			ids = append(ids, v.Location.ID)
		}
	}
	return ids
}

// LocationGroup is a set of locations that describe the same place.
type LocationGroup struct {
	Key        string             `json:"key"`
	Survivor   catalog.Location   `json:"survivor"`
	Duplicates []catalog.Location `json:"duplicates"`
}

// GroupLocationDuplicates groups locations by normalized name, split by
// Tabelog store ID when rows carry different IDs. Rows without a store ID
// join the group of a name when exactly one store ID exists for it. The
// survivor of each group has the most references, then a Tabelog URL, then
// the earliest created_at, then the smallest ID.
func GroupLocationDuplicates(locations []catalog.Location, refCounts map[string]int) []LocationGroup {
	byName := make(map[string][]catalog.Location)
	var names []string
	for _, loc := range locations {
		key := textutil.NormalizeKey(loc.Name)
		if key == "" {
			continue
		}
		if _, seen := byName[key]; !seen {
			names = append(names, key)
		}
		byName[key] = append(byName[key], loc)
	}

	var groups []LocationGroup
	for _, name := range names {
		for storeID, members := range splitByStore(byName[name]) {
			if len(members) < 2 {
				continue
			}
			key := name
			if storeID != "" {
				key += "|" + storeID
			}
			sortSurvivorFirst(members, refCounts)
			groups = append(groups, LocationGroup{Key: key, Survivor: members[0], Duplicates: members[1:]})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

func splitByStore(members []catalog.Location) map[string][]catalog.Location {
	parts := make(map[string][]catalog.Location)
	var unknown []catalog.Location
	for _, loc := range members {
		if id, ok := tabelog.StoreID(loc.TabelogURL); ok {
			parts[id] = append(parts[id], loc)
			continue
		}
		unknown = append(unknown, loc)
	}
	if len(parts) == 1 {
		for id := range parts {
			parts[id] = append(parts[id], unknown...)
		}
		return parts
	}
	if len(unknown) > 0 {
		parts[""] = unknown
	}
	return parts
}

func sortSurvivorFirst(members []catalog.Location, refCounts map[string]int) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if ra, rb := refCounts[a.ID], refCounts[b.ID]; ra != rb {
			return ra > rb
		}
		if ha, hb := a.TabelogURL != "", b.TabelogURL != ""; ha != hb {
			return ha
		}
		ta, oka := a.Created()
		tb, okb := b.Created()
		if oka != okb {
			return oka
		}
		if oka && !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.ID < b.ID
	})
}

// SimilarPair is two locations with different keys but similar names.
type SimilarPair struct {
	A     catalog.Location `json:"a"`
	B     catalog.Location `json:"b"`
	Score float64          `json:"score"`
}

// SimilarNames finds location pairs whose names score at least threshold but
// whose normalized keys differ, so they were not grouped as exact duplicates.
// Only pairs sharing a fingerprint term are compared.
func SimilarNames(locations []catalog.Location, threshold float64) []SimilarPair {
	fingerprints := make([]*textutil.Fingerprint, len(locations))
	keys := make([]string, len(locations))
	index := make(map[string][]int)
	for i, loc := range locations {
		keys[i] = textutil.NormalizeKey(loc.Name)
		fingerprints[i] = textutil.NewFingerprint(loc.Name)
		for _, term := range fingerprints[i].Terms() {
			index[term] = append(index[term], i)
		}
	}

	compared := make(map[[2]int]bool)
	var pairs []SimilarPair
	for i := range locations {
		for _, term := range fingerprints[i].Terms() {
			for _, j := range index[term] {
				if j <= i || compared[[2]int{i, j}] {
					continue
				}
				compared[[2]int{i, j}] = true
				if keys[i] == keys[j] {
					continue
				}
				score := textutil.CosineSimilarity(fingerprints[i], fingerprints[j])
				if score >= threshold {
					pairs = append(pairs, SimilarPair{A: locations[i], B: locations[j], Score: score})
				}
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	return pairs
}
