// Package textnorm folds Vietnamese text to plain ASCII letters so that
// "Áo thun" and "ao thun" match in search.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var replacer = strings.NewReplacer("đ", "d", "Đ", "D")

// Fold strips diacritics and lowercases s.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, replacer.Replace(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}
