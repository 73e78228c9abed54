package affiliate

import (
	"errors"
	"net/url"
	"strings"
)

// ReferralBase is the ValueCommerce redirect endpoint LinkSwitch produces.
const ReferralBase = "https://ck.jp.ap.valuecommerce.com/servlet/referral"

// ErrNoVCURL reports a ValueCommerce URL without a usable vc_url parameter.
var ErrNoVCURL = errors.New("valuecommerce url has no vc_url parameter")

const maxDecodeRounds = 5

// IsWrapped reports whether raw points at a ValueCommerce host.
func IsWrapped(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "valuecommerce.com" || strings.HasSuffix(host, ".valuecommerce.com")
}

// ExtractOriginalURL returns the destination encoded in the vc_url parameter
// of a ValueCommerce referral URL. Values that were escaped more than once
// are unescaped until an absolute http(s) URL appears.
func ExtractOriginalURL(wrapped string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(wrapped))
	if err != nil {
		return "", ErrNoVCURL
	}
	value := u.Query().Get("vc_url")
	for range maxDecodeRounds {
		if value == "" {
			return "", ErrNoVCURL
		}
		if isAbsoluteHTTP(value) {
			return value, nil
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil || decoded == value {
			return "", ErrNoVCURL
		}
		value = decoded
	}
	return "", ErrNoVCURL
}

// Wrap builds the referral URL LinkSwitch would generate for original.
func Wrap(original, sid, pid string) string {
	q := url.Values{}
	q.Set("sid", sid)
	q.Set("pid", pid)
	q.Set("vc_url", original)
	return ReferralBase + "?" + q.Encode()
}

func isAbsoluteHTTP(value string) bool {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
