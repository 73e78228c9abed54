package tabelog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"oshimaint/internal/services"
)

// LinkStatus classifies the outcome of a page check.
type LinkStatus string

const (
	StatusLive       LinkStatus = "live"
	StatusDead       LinkStatus = "dead"
	StatusRedirected LinkStatus = "redirected"
	// StatusUnknown covers throttling and server errors; the link may be fine.
	StatusUnknown LinkStatus = "unknown"
)

// Result describes one checked URL.
type Result struct {
	URL          string     `json:"url"`
	Status       LinkStatus `json:"status"`
	HTTPStatus   int        `json:"http_status"`
	RedirectTo   string     `json:"redirect_to,omitempty"`
	StoreName    string     `json:"store_name,omitempty"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
}

// Checker fetches Tabelog pages without following redirects, so a moved or
// closed store shows up as a redirect rather than as the page it lands on.
type Checker struct {
	client    *http.Client
	userAgent string
}

// NewChecker builds a Checker. A nil client gets one with the given timeout.
func NewChecker(client *http.Client, userAgent string, timeout time.Duration) *Checker {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Checker{client: &noRedirect, userAgent: userAgent}
}

// Check requests rawURL and classifies the response.
func (c *Checker) Check(ctx context.Context, rawURL string) (Result, error) {
	result := Result{URL: rawURL}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "tabelog", "check", "build request", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept-Language", "ja")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result, err
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return result, services.Wrap(services.ErrTimeout, "tabelog", "check", rawURL, err)
		}
		return result, services.Wrap(services.ErrExternalService, "tabelog", "check", rawURL, err)
	}
	defer resp.Body.Close()

	result.HTTPStatus = resp.StatusCode
	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		result.Status = StatusRedirected
		if loc, err := resp.Location(); err == nil {
			result.RedirectTo = loc.String()
		}
		return result, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Status = StatusDead
		return result, nil
	case resp.StatusCode != http.StatusOK:
		result.Status = StatusUnknown
		return result, nil
	}

	result.Status = StatusLive
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return result, services.Wrap(services.ErrExternalService, "tabelog", "check", fmt.Sprintf("parse %s", rawURL), err)
	}
	result.StoreName = storeName(doc)
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		result.CanonicalURL = strings.TrimSpace(href)
	}
	return result, nil
}

// storeName prefers the page heading and falls back to the document title,
// which reads "店名 (駅/ジャンル) - 食べログ".
func storeName(doc *goquery.Document) string {
	if name := strings.TrimSpace(doc.Find("h2.display-name").First().Text()); name != "" {
		return strings.Join(strings.Fields(name), " ")
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if i := strings.LastIndex(title, " - "); i > 0 {
		title = title[:i]
	}
	if i := strings.Index(title, " ("); i > 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}
