package catalog

import (
	"encoding/json"
	"strings"
	"time"
)

// CelebrityType distinguishes solo performers from groups.
type CelebrityType string

const (
	CelebrityIndividual CelebrityType = "individual"
	CelebrityGroup      CelebrityType = "group"
)

// Celebrity is a performer or group whose appearances are tracked.
type Celebrity struct {
	ID       string        `json:"id,omitempty" db:"id"`
	Name     string        `json:"name" db:"name"`
	Slug     string        `json:"slug" db:"slug"`
	Type     CelebrityType `json:"type,omitempty" db:"type"`
	Bio      string        `json:"bio,omitempty" db:"bio"`
	ImageURL string        `json:"image_url,omitempty" db:"image_url"`
	Status   string        `json:"status,omitempty" db:"status"`
}

// Episode is one video or broadcast appearance.
type Episode struct {
	ID           string `json:"id,omitempty" db:"id"`
	Title        string `json:"title" db:"title"`
	Description  string `json:"description,omitempty" db:"description"`
	Date         string `json:"date,omitempty" db:"date"`
	VideoURL     string `json:"video_url,omitempty" db:"video_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	ViewCount    int64  `json:"view_count" db:"view_count"`
	LikeCount    int64  `json:"like_count" db:"like_count"`
	CommentCount int64  `json:"comment_count" db:"comment_count"`
	// Duration is in whole minutes.
	Duration    int    `json:"duration" db:"duration"`
	CelebrityID string `json:"celebrity_id,omitempty" db:"celebrity_id"`
}

// PublishedAt parses Date. The zero time and false are returned for empty
// or unrecognised values.
func (e Episode) PublishedAt() (time.Time, bool) {
	return ParseDate(e.Date)
}

// EpisodeStats is the statistics subset refreshed on re-ingestion.
type EpisodeStats struct {
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	Duration     int    `json:"duration"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Stats extracts the refreshable statistics of an episode.
func (e Episode) Stats() EpisodeStats {
	return EpisodeStats{
		ViewCount:    e.ViewCount,
		LikeCount:    e.LikeCount,
		CommentCount: e.CommentCount,
		Duration:     e.Duration,
		ThumbnailURL: e.ThumbnailURL,
	}
}

// Location is a restaurant, shop or venue shown in an episode.
type Location struct {
	ID            string        `json:"id,omitempty" db:"id"`
	Name          string        `json:"name" db:"name"`
	Slug          string        `json:"slug,omitempty" db:"slug"`
	Address       string        `json:"address,omitempty" db:"address"`
	Description   string        `json:"description,omitempty" db:"description"`
	TabelogURL    string        `json:"tabelog_url,omitempty" db:"tabelog_url"`
	AffiliateInfo AffiliateInfo `json:"affiliate_info,omitempty" db:"affiliate_info"`
	ImageURL      string        `json:"image_url,omitempty" db:"image_url"`
	ImageURLs     []string      `json:"image_urls,omitempty" db:"image_urls"`
	Tags          []string      `json:"tags,omitempty" db:"tags"`
	CreatedAt     string        `json:"created_at,omitempty" db:"created_at"`
}

// Created parses CreatedAt.
func (l Location) Created() (time.Time, bool) {
	return ParseDate(l.CreatedAt)
}

// Item is a product (clothing, goods) worn or used in an episode.
type Item struct {
	ID          string   `json:"id,omitempty" db:"id"`
	Name        string   `json:"name" db:"name"`
	Brand       string   `json:"brand,omitempty" db:"brand"`
	Category    string   `json:"category,omitempty" db:"category"`
	Price       *float64 `json:"price,omitempty" db:"price"`
	PurchaseURL string   `json:"purchase_url,omitempty" db:"purchase_url"`
	CelebrityID string   `json:"celebrity_id,omitempty" db:"celebrity_id"`
}

// EpisodeLocation links an episode to a location.
type EpisodeLocation struct {
	EpisodeID  string `json:"episode_id" db:"episode_id"`
	LocationID string `json:"location_id" db:"location_id"`
}

// Key identifies the junction row in journal backups.
func (l EpisodeLocation) Key() string {
	return l.EpisodeID + ":" + l.LocationID
}

// EpisodeItem links an episode to an item.
type EpisodeItem struct {
	EpisodeID string `json:"episode_id" db:"episode_id"`
	ItemID    string `json:"item_id" db:"item_id"`
}

// Key identifies the junction row in journal backups.
func (l EpisodeItem) Key() string {
	return l.EpisodeID + ":" + l.ItemID
}

// AffiliateInfo is the affiliate_info JSON column. Keys other than the ones
// a caller decodes pass through untouched.
type AffiliateInfo map[string]json.RawMessage

// Clone returns a shallow copy that can be modified without touching the original.
func (a AffiliateInfo) Clone() AffiliateInfo {
	if a == nil {
		return nil
	}
	out := make(AffiliateInfo, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts the date and timestamp renderings produced by PostgREST,
// Postgres text casts and the YouTube API.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
