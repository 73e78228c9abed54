package affiliate

import (
	"strings"
	"time"

	"oshimaint/internal/catalog"
	"oshimaint/internal/tabelog"
)

// Outcome classifies what Annotate did to a location.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is the outcome for one location. Location holds the row as it
// should be stored; for skipped and unchanged rows it equals the input.
type Result struct {
	Outcome     Outcome          `json:"outcome"`
	Location    catalog.Location `json:"location"`
	PreviousURL string           `json:"previous_url,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// Annotator marks locations as eligible for LinkSwitch rewriting.
type Annotator struct {
	// Source is recorded in the Active state, e.g. "linkswitch".
	Source string
}

// Annotate unwraps ValueCommerce URLs back to bare Tabelog URLs and records
// an Active state stamped with now. Rows without a usable Tabelog URL are
// skipped untouched.
func (a Annotator) Annotate(loc catalog.Location, now time.Time) Result {
	current := strings.TrimSpace(loc.TabelogURL)
	if current == "" {
		return Result{Outcome: OutcomeSkipped, Location: loc, Reason: "no tabelog_url"}
	}

	target := current
	if IsWrapped(current) {
		original, err := ExtractOriginalURL(current)
		if err != nil {
			return Result{Outcome: OutcomeSkipped, Location: loc, Reason: err.Error()}
		}
		target = original
	}
	if !tabelog.IsTabelogURL(target) {
		return Result{Outcome: OutcomeSkipped, Location: loc, Reason: "not a tabelog url"}
	}
	cleaned, err := CleanTabelogURL(target)
	if err != nil {
		return Result{Outcome: OutcomeSkipped, Location: loc, Reason: err.Error()}
	}

	if cleaned == loc.TabelogURL && a.alreadyActive(loc.AffiliateInfo, cleaned) {
		return Result{Outcome: OutcomeUnchanged, Location: loc}
	}

	info, err := WithState(loc.AffiliateInfo, Active{OriginalURL: cleaned, VerifiedAt: now, Source: a.Source})
	if err != nil {
		return Result{Outcome: OutcomeSkipped, Location: loc, Reason: err.Error()}
	}
	updated := loc
	updated.TabelogURL = cleaned
	updated.AffiliateInfo = info
	return Result{Outcome: OutcomeUpdated, Location: updated, PreviousURL: loc.TabelogURL}
}

func (a Annotator) alreadyActive(info catalog.AffiliateInfo, cleaned string) bool {
	state, err := ReadState(info)
	if err != nil {
		return false
	}
	active, ok := state.(Active)
	return ok && active.OriginalURL == cleaned && active.Source == a.Source
}

// Deactivate records an Inactive state on loc, for example after its
// Tabelog page was found dead. ok is false when the row already carries the
// same state.
func Deactivate(loc catalog.Location, reason string) (catalog.Location, bool, error) {
	if state, err := ReadState(loc.AffiliateInfo); err == nil {
		if inactive, isInactive := state.(Inactive); isInactive && inactive.Reason == reason {
			return loc, false, nil
		}
	}
	info, err := WithState(loc.AffiliateInfo, Inactive{Reason: reason})
	if err != nil {
		return loc, false, err
	}
	loc.AffiliateInfo = info
	return loc, true, nil
}
