package affiliate

import (
	"fmt"
	"net/url"
	"strings"

	"oshimaint/internal/tabelog"
)

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
	"yclid":        true,
	"sc_e":         true,
	"sk":           true,
	"svd":          true,
	"svt":          true,
	"svps":         true,
	"lid":          true,
}

// CleanTabelogURL returns the bare https form of a Tabelog URL with tracking
// parameters and the fragment removed.
func CleanTabelogURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%q is not an http(s) url", raw)
	}
	if !tabelog.IsTabelogHost(u.Hostname()) {
		return "", fmt.Errorf("%q is not a tabelog url", raw)
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Hostname())
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if trackingParams[strings.ToLower(key)] {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
