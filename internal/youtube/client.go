package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxVideoIDs is the videos.list limit per request.
const MaxVideoIDs = 50

// Thumbnail is one rendition of a video thumbnail.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Snippet carries the descriptive fields of a video or search hit.
type Snippet struct {
	PublishedAt  string               `json:"publishedAt"`
	ChannelID    string               `json:"channelId"`
	ChannelTitle string               `json:"channelTitle"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Thumbnails   map[string]Thumbnail `json:"thumbnails"`
}

var thumbnailPreference = []string{"maxres", "standard", "high", "medium", "default"}

// BestThumbnail returns the largest available thumbnail URL.
func (s Snippet) BestThumbnail() string {
	for _, key := range thumbnailPreference {
		if thumb, ok := s.Thumbnails[key]; ok && thumb.URL != "" {
			return thumb.URL
		}
	}
	return ""
}

// SearchResult is one search.list hit.
type SearchResult struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet Snippet `json:"snippet"`
}

// SearchResponse is a page of search.list results.
type SearchResponse struct {
	NextPageToken string         `json:"nextPageToken"`
	Items         []SearchResult `json:"items"`
	PageInfo      struct {
		TotalResults   int `json:"totalResults"`
		ResultsPerPage int `json:"resultsPerPage"`
	} `json:"pageInfo"`
}

// VideoIDs lists the video IDs of the page, skipping channel and playlist hits.
func (r *SearchResponse) VideoIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids
}

// Statistics holds the counters of a video. The API encodes them as strings
// and omits hidden ones.
type Statistics struct {
	ViewCount    int64 `json:"viewCount,string"`
	LikeCount    int64 `json:"likeCount,string"`
	CommentCount int64 `json:"commentCount,string"`
}

// ContentDetails holds the ISO-8601 duration of a video.
type ContentDetails struct {
	Duration string `json:"duration"`
}

// Video is one videos.list item.
type Video struct {
	ID             string         `json:"id"`
	Snippet        Snippet        `json:"snippet"`
	Statistics     Statistics     `json:"statistics"`
	ContentDetails ContentDetails `json:"contentDetails"`
}

// WatchURL returns the canonical watch page URL used as the episode's natural key.
func (v Video) WatchURL() string {
	return WatchURL(v.ID)
}

// WatchURL returns the canonical watch page URL of a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// VideoListResponse is the videos.list payload.
type VideoListResponse struct {
	Items []Video `json:"items"`
}

// SearchOptions narrows a search.list request.
type SearchOptions struct {
	ChannelID  string
	Query      string
	PageToken  string
	MaxResults int
	// Order defaults to "date".
	Order string
}

// APIError is returned for non-200 responses.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Latency    time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("youtube %s returned %d (latency=%v)", e.Endpoint, e.StatusCode, e.Latency)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Temporary reports whether retrying later could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client provides access to the YouTube Data API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a YouTube client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("youtube api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("youtube base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search runs one search.list request for videos.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (*SearchResponse, error) {
	if strings.TrimSpace(opts.ChannelID) == "" && strings.TrimSpace(opts.Query) == "" {
		return nil, errors.New("channel id or query required")
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	order := opts.Order
	if order == "" {
		order = "date"
	}
	params.Set("order", order)
	if opts.ChannelID != "" {
		params.Set("channelId", strings.TrimSpace(opts.ChannelID))
	}
	if opts.Query != "" {
		params.Set("q", strings.TrimSpace(opts.Query))
	}
	if opts.PageToken != "" {
		params.Set("pageToken", opts.PageToken)
	}
	if opts.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(min(opts.MaxResults, MaxVideoIDs)))
	}

	var payload SearchResponse
	if err := c.get(ctx, "search", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Videos fetches snippet, statistics and content details for up to
// MaxVideoIDs videos.
func (c *Client) Videos(ctx context.Context, ids []string) (*VideoListResponse, error) {
	if len(ids) == 0 {
		return &VideoListResponse{}, nil
	}
	if len(ids) > MaxVideoIDs {
		return nil, fmt.Errorf("videos.list accepts at most %d ids, got %d", MaxVideoIDs, len(ids))
	}
	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", strconv.Itoa(MaxVideoIDs))

	var payload VideoListResponse
	if err := c.get(ctx, "videos", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + "/" + resource)
	if err != nil {
		return fmt.Errorf("parse youtube url: %w", err)
	}
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			Endpoint:   resource,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
			Latency:    latency,
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube %s response: %w", resource, err)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || json.Unmarshal(data, &payload) != nil {
		return ""
	}
	return payload.Error.Message
}
