// Package textnorm prepares raw ingredient text for rule matching.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun = regexp.MustCompile(`\s+`)

	// "E 471", "e-471", "E.471" -> "e471"
	eCode = regexp.MustCompile(`\be[\s.\-]?(\d{3,4}[a-z]?)\b`)

	quoteReplacer = strings.NewReplacer(
		"’", "'",
		"‘", "'",
		"ʼ", "'",
		" ", " ",
		"‐", "-",
		"‑", "-",
		"–", "-",
	)
)

// Normalizer is the default text normalizer.
type Normalizer struct{}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize lowercases the text, composes accents, unifies punctuation,
// canonicalizes E-codes and collapses whitespace.
func (n *Normalizer) Normalize(raw string) string {
	return Normalize(raw)
}

// Normalize is the package-level form of Normalizer.Normalize.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := norm.NFC.String(raw)
	s = quoteReplacer.Replace(s)
	s = strings.ToLower(s)
	s = eCode.ReplaceAllString(s, "e$1")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fold strips diacritics: "lactosérum" -> "lactoserum".
// The result is NFC; letters without a decomposition are left untouched.
func Fold(s string) string {
	if isASCII(s) {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

