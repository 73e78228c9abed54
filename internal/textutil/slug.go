package textutil

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 80

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a display name to a lowercase ASCII slug. Accents are
// stripped; when letters outside ASCII had to be dropped a short hash of the
// original name is appended so distinct Japanese names keep distinct slugs.
func Slugify(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	stripper := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(stripper, name)
	if err != nil {
		ascii = name
	}
	ascii = strings.ToLower(ascii)

	lossy := false
	for _, r := range ascii {
		if r > unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			lossy = true
			break
		}
	}

	slug := strings.Trim(nonSlug.ReplaceAllString(ascii, "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if !lossy {
		return slug
	}

	sum := sha1.Sum([]byte(norm.NFC.String(name)))
	suffix := hex.EncodeToString(sum[:])[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
