package affiliate

import (
	"encoding/json"
	"fmt"
	"time"

	"oshimaint/internal/catalog"
)

// InfoKey is the affiliate_info key holding the LinkSwitch state.
const InfoKey = "linkswitch"

// Status is the serialized discriminator of a State.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// State is either Active or Inactive.
type State interface {
	Status() Status
	isState()
}

// Active means the stored tabelog_url is bare and LinkSwitch may rewrite it.
type Active struct {
	OriginalURL string
	VerifiedAt  time.Time
	Source      string
}

// Inactive means LinkSwitch must not be relied on for the row.
type Inactive struct {
	Reason string
}

func (Active) Status() Status   { return StatusActive }
func (Inactive) Status() Status { return StatusInactive }
func (Active) isState()         {}
func (Inactive) isState()       {}

type record struct {
	Status      Status `json:"status"`
	OriginalURL string `json:"original_url,omitempty"`
	VerifiedAt  string `json:"verified_at,omitempty"`
	Source      string `json:"source,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// ReadState decodes the LinkSwitch state of info. A nil State and nil error
// mean the key is absent.
func ReadState(info catalog.AffiliateInfo) (State, error) {
	raw, ok := info[InfoKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s state: %w", InfoKey, err)
	}
	switch rec.Status {
	case StatusActive:
		state := Active{OriginalURL: rec.OriginalURL, Source: rec.Source}
		if rec.VerifiedAt != "" {
			verified, err := time.Parse(time.RFC3339, rec.VerifiedAt)
			if err != nil {
				return nil, fmt.Errorf("decode %s verified_at: %w", InfoKey, err)
			}
			state.VerifiedAt = verified.UTC()
		}
		return state, nil
	case StatusInactive:
		return Inactive{Reason: rec.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown %s status %q", InfoKey, rec.Status)
	}
}

// WithState returns a copy of info carrying state. Other keys are preserved.
func WithState(info catalog.AffiliateInfo, state State) (catalog.AffiliateInfo, error) {
	var rec record
	switch s := state.(type) {
	case Active:
		rec = record{Status: StatusActive, OriginalURL: s.OriginalURL, Source: s.Source}
		if !s.VerifiedAt.IsZero() {
			rec.VerifiedAt = s.VerifiedAt.UTC().Format(time.RFC3339)
		}
	case Inactive:
		rec = record{Status: StatusInactive, Reason: s.Reason}
	default:
		return nil, fmt.Errorf("unsupported %s state %T", InfoKey, state)
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s state: %w", InfoKey, err)
	}
	out := info.Clone()
	if out == nil {
		out = catalog.AffiliateInfo{}
	}
	out[InfoKey] = encoded
	return out, nil
}
