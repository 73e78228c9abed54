package dedupe

import (
	"regexp"
	"slices"
	"strings"

	"oshimaint/internal/textutil"
)

// episodePrefix matches a leading episode number such as "#12", "第3回",
// "第3話", "Ep.4", "Vol 2" or "No.5" together with trailing separators.
var episodePrefix = regexp.MustCompile(`^(?i:#\s*\d+|第\s*\d+\s*[回話]|(?:ep|episode|vol|no)\.?\s*\d+)` + separators)

const separators = `[\s\-:|/・.,、。~〜]*`

var separatorRun = regexp.MustCompile(`^` + separators)

// NormalizeTitle reduces an episode title to the key duplicates share.
// Leading episode numbers and channel names are stripped repeatedly, so
// "#12 よにのちゃんねる [モーニング]" and "よにのちゃんねる [モーニング]"
// produce the same key. A strip that would leave nothing, or only a channel
// name, is skipped. The function is idempotent.
func NormalizeTitle(title string, channelNames []string) string {
	current := textutil.Fold(title)
	channels := foldChannels(channelNames)
	for {
		next := stripPrefix(current, channels)
		if next == current || next == "" || isChannelOnly(next, channels) {
			return current
		}
		current = next
	}
}

func foldChannels(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if folded := textutil.Fold(name); folded != "" {
			out = append(out, folded)
		}
	}
	return out
}

func stripPrefix(title string, channels []string) string {
	if loc := episodePrefix.FindStringIndex(title); loc != nil && loc[1] > 0 {
		return strings.TrimSpace(title[loc[1]:])
	}
	for _, name := range channels {
		for _, form := range channelForms(name) {
			if rest, ok := strings.CutPrefix(title, form); ok {
				rest = separatorRun.ReplaceAllString(rest, "")
				return strings.TrimSpace(rest)
			}
		}
	}
	return title
}

func isChannelOnly(title string, channels []string) bool {
	for _, name := range channels {
		if slices.Contains(channelForms(name), title) {
			return true
		}
	}
	return false
}

func channelForms(name string) []string {
	return []string{
		"【" + name + "】",
		"[" + name + "]",
		"(" + name + ")",
		"「" + name + "」",
		name,
	}
}
