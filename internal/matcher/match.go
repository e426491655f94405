// Package matcher tests ingredient rule patterns against normalized text
// and resolves the raw hits into an override-aware result set.
package matcher

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/textnorm"
)

// Word characters for boundary purposes. Accented letters count, so
// "lactosérum" is one word and never matches a rule for "rum".
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

// Match reports whether pattern matches haystack under mode.
// The haystack must already be lowercased and normalized.
//
// Regex patterns are compiled on every call; a malformed pattern is logged
// and treated as a non-match. Hot paths use Compile instead.
func Match(haystack, pattern string, mode domain.MatchType) bool {
	if pattern == "" {
		return false
	}

	switch mode {
	case domain.MatchExact:
		p := strings.ToLower(pattern)
		if haystack == p {
			return true
		}
		return textnorm.Fold(haystack) == textnorm.Fold(p)

	case domain.MatchContains:
		p := strings.ToLower(pattern)
		if strings.Contains(haystack, p) {
			return true
		}
		return strings.Contains(textnorm.Fold(haystack), textnorm.Fold(p))

	case domain.MatchWordBoundary:
		p := strings.ToLower(pattern)
		if wordRegexp(p).MatchString(haystack) {
			return true
		}
		fp := textnorm.Fold(p)
		return wordRegexp(fp).MatchString(textnorm.Fold(haystack))

	case domain.MatchRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			slog.Warn("invalid ingredient regex, treating as no match",
				"pattern", pattern,
				"error", err,
			)
			return false
		}
		return re.MatchString(haystack)
	}

	return false
}

func wordRegexp(literal string) *regexp.Regexp {
	// QuoteMeta output always compiles.
	return regexp.MustCompile(wordStart + regexp.QuoteMeta(literal) + wordEnd)
}
