package affiliate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oshimaint/internal/catalog"
)

const storeURL = "https://tabelog.com/tokyo/A1301/A130101/13000001/"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestAnnotateSkipsRowsWithoutUsableURL(t *testing.T) {
	annotator := Annotator{Source: "linkswitch"}
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"wrapped without vc_url", "https://ck.jp.ap.valuecommerce.com/servlet/referral?sid=1&pid=2"},
		{"other host", "https://www.hotpepper.jp/strJ000000000/"},
		{"wrapped other host", Wrap("https://example.com/shop", "1", "2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := catalog.Location{ID: "loc", TabelogURL: tt.url}
			result := annotator.Annotate(loc, fixedNow)
			assert.Equal(t, OutcomeSkipped, result.Outcome)
			assert.Equal(t, loc, result.Location)
			assert.NotEmpty(t, result.Reason)
		})
	}
}

func TestAnnotateUnwrapsAndActivates(t *testing.T) {
	annotator := Annotator{Source: "linkswitch"}
	loc := catalog.Location{
		ID:            "loc",
		TabelogURL:    Wrap(storeURL+"#menu", "1", "2"),
		AffiliateInfo: catalog.AffiliateInfo{"amazon": json.RawMessage(`{"tag":"x"}`)},
	}

	result := annotator.Annotate(loc, fixedNow)
	require.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, storeURL, result.Location.TabelogURL)
	assert.Equal(t, loc.TabelogURL, result.PreviousURL)
	assert.JSONEq(t, `{"tag":"x"}`, string(result.Location.AffiliateInfo["amazon"]))
	assert.NotContains(t, loc.AffiliateInfo, InfoKey, "input row must not be mutated")

	state, err := ReadState(result.Location.AffiliateInfo)
	require.NoError(t, err)
	assert.Equal(t, Active{OriginalURL: storeURL, VerifiedAt: fixedNow, Source: "linkswitch"}, state)

	again := annotator.Annotate(result.Location, fixedNow.Add(time.Hour))
	assert.Equal(t, OutcomeUnchanged, again.Outcome)
	assert.Equal(t, result.Location, again.Location)
}

func TestAnnotateReactivatesInactiveRow(t *testing.T) {
	info, err := WithState(nil, Inactive{Reason: "page returned 404"})
	require.NoError(t, err)
	loc := catalog.Location{ID: "loc", TabelogURL: storeURL, AffiliateInfo: info}

	result := Annotator{Source: "linkswitch"}.Annotate(loc, fixedNow)
	require.Equal(t, OutcomeUpdated, result.Outcome)
	state, err := ReadState(result.Location.AffiliateInfo)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, state.Status())
}

func TestStateEncoding(t *testing.T) {
	info, err := WithState(catalog.AffiliateInfo{"other": json.RawMessage(`1`)}, Active{OriginalURL: storeURL, VerifiedAt: fixedNow, Source: "linkswitch"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"active","original_url":"`+storeURL+`","verified_at":"2024-05-01T12:00:00Z","source":"linkswitch"}`, string(info[InfoKey]))
	assert.JSONEq(t, `1`, string(info["other"]))

	info, err = WithState(info, Inactive{Reason: "closed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"inactive","reason":"closed"}`, string(info[InfoKey]))

	state, err := ReadState(catalog.AffiliateInfo{})
	require.NoError(t, err)
	assert.Nil(t, state)

	_, err = ReadState(catalog.AffiliateInfo{InfoKey: json.RawMessage(`{"status":"maybe"}`)})
	assert.Error(t, err)
}

func TestDeactivate(t *testing.T) {
	loc := catalog.Location{ID: "loc", TabelogURL: storeURL}

	updated, changed, err := Deactivate(loc, "page returned 404")
	require.NoError(t, err)
	assert.True(t, changed)
	state, err := ReadState(updated.AffiliateInfo)
	require.NoError(t, err)
	assert.Equal(t, Inactive{Reason: "page returned 404"}, state)

	_, changed, err = Deactivate(updated, "page returned 404")
	require.NoError(t, err)
	assert.False(t, changed)
}
