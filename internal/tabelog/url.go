// Package tabelog recognises Tabelog restaurant URLs and checks whether the
// pages behind them are still live.
package tabelog

import (
	"net/url"
	"regexp"
	"strings"
)

var storePagePattern = regexp.MustCompile(`^/[a-z]{2,8}/A\d{3,4}/A\d{3,6}/(\d{8}|\d{10})/?$`)

// Sub-pages and listings that share the tabelog.com host but are not store pages.
var excludedPathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dtlrvwlst/`),
	regexp.MustCompile(`/rvwr/`),
	regexp.MustCompile(`/user/`),
	regexp.MustCompile(`/member/`),
	regexp.MustCompile(`/review/`),
	regexp.MustCompile(`/diary/`),
	regexp.MustCompile(`/photo/`),
	regexp.MustCompile(`/dtlphotolst/`),
	regexp.MustCompile(`/dtlmenu/`),
	regexp.MustCompile(`/dtlmap/`),
	regexp.MustCompile(`/rstLst/`),
	regexp.MustCompile(`/catLst/`),
	regexp.MustCompile(`/matome/`),
	regexp.MustCompile(`^/en/`),
}

// IsTabelogHost reports whether host (without port) is tabelog.com or a subdomain of it.
func IsTabelogHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "tabelog.com" || strings.HasSuffix(host, ".tabelog.com")
}

// IsTabelogURL reports whether raw is an absolute http(s) URL on a Tabelog host.
func IsTabelogURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return IsTabelogHost(u.Hostname())
}

// IsStorePage reports whether raw points at an individual restaurant page,
// for example https://tabelog.com/tokyo/A1311/A131105/13034566/.
func IsStorePage(raw string) bool {
	_, ok := StoreID(raw)
	return ok
}

// StoreID extracts the 8 or 10 digit restaurant ID from a store page URL.
func StoreID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !IsTabelogHost(u.Hostname()) {
		return "", false
	}
	for _, p := range excludedPathPatterns {
		if p.MatchString(u.Path) {
			return "", false
		}
	}
	m := storePagePattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
