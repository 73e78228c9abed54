package dedupe

import (
	"regexp"
	"sort"
	"strings"

	"oshimaint/internal/catalog"
	"oshimaint/internal/textutil"
)

// Reason explains why a row became a deletion candidate.
type Reason string

const (
	ReasonDuplicate  Reason = "duplicate"
	ReasonShortForm  Reason = "short_form"
	ReasonShortTitle Reason = "short_title"
	ReasonPattern    Reason = "pattern"
)

// EpisodeOptions tunes ClassifyEpisodes.
type EpisodeOptions struct {
	ChannelNames []string
	// ShortMarkers flag short-form videos when found in a title or description.
	ShortMarkers []string
	// ShortTitleThreshold flags titles with fewer runes than this.
	ShortTitleThreshold int
}

// DefaultEpisodeOptions returns the markers and threshold used when nothing is configured.
func DefaultEpisodeOptions() EpisodeOptions {
	return EpisodeOptions{
		ShortMarkers:        []string{"#shorts", "shorts", "ショート"},
		ShortTitleThreshold: 15,
	}
}

// EpisodeCandidate is an episode proposed for deletion.
type EpisodeCandidate struct {
	Episode         catalog.Episode `json:"episode"`
	Reasons         []Reason        `json:"reasons"`
	NormalizedTitle string          `json:"normalized_title"`
	// DuplicateOf is the surviving episode's ID when Reasons includes duplicate.
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// DuplicateGroup is a set of episodes sharing a normalized title.
type DuplicateGroup struct {
	Key        string            `json:"key"`
	Survivor   catalog.Episode   `json:"survivor"`
	Duplicates []catalog.Episode `json:"duplicates"`
}

// EpisodeReport is the outcome of ClassifyEpisodes.
type EpisodeReport struct {
	Groups     []DuplicateGroup   `json:"groups"`
	Candidates []EpisodeCandidate `json:"candidates"`
}

// CandidateIDs lists candidate episode IDs in report order.
func (r EpisodeReport) CandidateIDs() []string {
	return EpisodeCandidateIDs(r.Candidates)
}

// EpisodeCandidateIDs lists the episode IDs of candidates.
func EpisodeCandidateIDs(candidates []EpisodeCandidate) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Episode.ID)
	}
	return ids
}

// ClassifyEpisodes groups episodes by normalized title and flags every row
// except the earliest of each group, plus short-form and low-value rows.
// Candidates keep the input order.
func ClassifyEpisodes(episodes []catalog.Episode, opts EpisodeOptions) EpisodeReport {
	keys := make([]string, len(episodes))
	groups := make(map[string][]int)
	var order []string
	for i, ep := range episodes {
		key := NormalizeTitle(ep.Title, opts.ChannelNames)
		keys[i] = key
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	duplicateOf := make(map[int]string)
	report := EpisodeReport{}
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sorted := sortByDate(episodes, members)
		survivor := episodes[sorted[0]]
		group := DuplicateGroup{Key: key, Survivor: survivor}
		for _, idx := range sorted[1:] {
			duplicateOf[idx] = survivor.ID
			group.Duplicates = append(group.Duplicates, episodes[idx])
		}
		report.Groups = append(report.Groups, group)
	}

	markers := foldMarkers(opts.ShortMarkers)
	for i, ep := range episodes {
		var reasons []Reason
		survivorID, dup := duplicateOf[i]
		if dup {
			reasons = append(reasons, ReasonDuplicate)
		}
		if hasMarker(ep, markers) {
			reasons = append(reasons, ReasonShortForm)
		}
		if opts.ShortTitleThreshold > 0 && textutil.RuneLen(strings.TrimSpace(ep.Title)) < opts.ShortTitleThreshold {
			reasons = append(reasons, ReasonShortTitle)
		}
		if len(reasons) == 0 {
			continue
		}
		report.Candidates = append(report.Candidates, EpisodeCandidate{
			Episode:         ep,
			Reasons:         reasons,
			NormalizedTitle: keys[i],
			DuplicateOf:     survivorID,
		})
	}
	return report
}

// MatchEpisodes returns the episodes whose title matches pattern, for
// removing test or placeholder rows.
func MatchEpisodes(episodes []catalog.Episode, pattern *regexp.Regexp) []EpisodeCandidate {
	if pattern == nil {
		return nil
	}
	var out []EpisodeCandidate
	for _, ep := range episodes {
		if pattern.MatchString(ep.Title) {
			out = append(out, EpisodeCandidate{
				Episode:         ep,
				Reasons:         []Reason{ReasonPattern},
				NormalizedTitle: textutil.Fold(ep.Title),
			})
		}
	}
	return out
}

// sortByDate orders member indexes by date ascending then ID. Rows without a
// parseable date sort last so a dated row always survives.
func sortByDate(episodes []catalog.Episode, members []int) []int {
	sorted := append([]int(nil), members...)
	sort.SliceStable(sorted, func(a, b int) bool {
		ea, eb := episodes[sorted[a]], episodes[sorted[b]]
		ta, oka := ea.PublishedAt()
		tb, okb := eb.PublishedAt()
		if oka != okb {
			return oka
		}
		if oka && !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return ea.ID < eb.ID
	})
	return sorted
}

func foldMarkers(markers []string) []string {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		if folded := textutil.Fold(m); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}

func hasMarker(ep catalog.Episode, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	title := textutil.Fold(ep.Title)
	description := textutil.Fold(ep.Description)
	for _, m := range markers {
		if strings.Contains(title, m) || strings.Contains(description, m) {
			return true
		}
	}
	return false
}
