package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Fold applies NFKC, narrows full-width ASCII, widens half-width kana and
// lower-cases the result. Whitespace runs collapse to one space.
func Fold(value string) string {
	value = norm.NFKC.String(value)
	value = width.Fold.String(value)
	// A Caser holds state, so each call gets its own.
	value = cases.Lower(language.Und).String(value)
	return CollapseSpace(value)
}

// NormalizeKey folds value and drops everything that is not a letter or a
// digit, so "Cafe  Kitsuné!" and "cafekitsuné" share a key.
func NormalizeKey(value string) string {
	folded := Fold(value)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollapseSpace trims value and replaces internal whitespace runs with a single space.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// RuneLen counts characters rather than bytes.
func RuneLen(value string) int {
	return len([]rune(value))
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) || r == 'ー'
}
