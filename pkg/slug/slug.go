// Package slug turns free text into URL and object-key safe identifiers.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Ligatures that do not decompose under NFD.
var ligatures = strings.NewReplacer("œ", "oe", "æ", "ae", "ß", "ss", "ø", "o", "ł", "l")

// Generate lowercases name, strips diacritics and joins words with hyphens:
//
//	"Boîte à livres du Château" -> "boite-a-livres-du-chateau"
//	"Cœur de Lyon" -> "coeur-de-lyon"
func Generate(name string) string {
	s := ligatures.Replace(strings.ToLower(strings.TrimSpace(name)))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}

	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}

// Truncate shortens slug to at most n bytes without leaving a trailing hyphen.
func Truncate(slug string, n int) string {
	if len(slug) <= n {
		return slug
	}
	return strings.TrimRight(slug[:n], "-")
}
