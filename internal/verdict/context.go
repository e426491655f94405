package verdict

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/textnorm"
)

// contextWindow is how many characters after a term are searched for an origin claim.
const contextWindow = 150

// vegetalQualifier matches a manufacturer's plant-origin statement in French or English.
var vegetalQualifier = regexp.MustCompile(`(?i)` +
	`(?:d'|d’|de\s+)?origine\s+v[ée]g[ée]tale` +
	`|v[ée]g[ée]tale?s?\s+uniquement` +
	`|plant[\s-]+(?:origin|based|derived|source)` +
	`|vegetable\s+(?:origin|source)` +
	`|of\s+vegetable\s+origin` +
	`|from\s+plants?`)

// Explanations attached to upgraded items.
const (
	ExplanationVegetalOrigin = "Origine végétale déclarée par le fabricant."
	ExplanationVeganLabel    = "Produit étiqueté vegan : aucune origine animale."
)

// ContextChecker upgrades doubtful items using the raw ingredient text and
// the product's vegan marker. Haram items are never upgraded.
type ContextChecker struct {
	lowerRaw string
	folded   foldedText
	vegan    bool
}

// NewContextChecker prepares a checker over the raw, non-normalized text.
func NewContextChecker(rawText string, vegan bool) *ContextChecker {
	lower := strings.ToLower(rawText)
	return &ContextChecker{
		lowerRaw: lower,
		folded:   foldText(lower),
		vegan:    vegan,
	}
}

// Check returns the status to use for an item and, when it was upgraded,
// the replacement explanation.
func (c *ContextChecker) Check(status domain.Status, terms []string) (domain.Status, string, bool) {
	if status != domain.StatusDoubtful {
		return status, "", false
	}
	if c.VegetalNear(terms) {
		return domain.StatusHalal, ExplanationVegetalOrigin, true
	}
	if c.vegan {
		return domain.StatusHalal, ExplanationVeganLabel, true
	}
	return status, "", false
}

// VegetalNear reports whether any term is followed, within the context
// window of its first occurrence, by a plant-origin statement. Terms are
// located ignoring accents and runs of whitespace, as the matcher does; the
// window itself is cut from the raw text.
func (c *ContextChecker) VegetalNear(terms []string) bool {
	if c.lowerRaw == "" {
		return false
	}
	for _, term := range terms {
		idx := c.folded.index(strings.ToLower(strings.TrimSpace(term)))
		if idx < 0 {
			continue
		}
		if vegetalQualifier.MatchString(window(c.lowerRaw[idx:], contextWindow)) {
			return true
		}
	}
	return false
}

// foldedText is a lowercased text with diacritics stripped and whitespace
// runs collapsed to one space. offsets[i] is the byte offset in the source
// of the rune that produced key[i].
type foldedText struct {
	key     string
	offsets []int
}

func foldText(s string) foldedText {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s))
	inSpace := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				offsets = append(offsets, i)
			}
			inSpace = true
			continue
		}
		inSpace = false
		f := textnorm.Fold(string(r))
		b.WriteString(f)
		for j := 0; j < len(f); j++ {
			offsets = append(offsets, i)
		}
	}
	return foldedText{key: b.String(), offsets: offsets}
}

// index returns the source offset of the first occurrence of term, or -1.
func (f foldedText) index(term string) int {
	if term == "" {
		return -1
	}
	needle := strings.TrimSpace(foldText(term).key)
	if needle == "" {
		return -1
	}
	i := strings.Index(f.key, needle)
	if i < 0 {
		return -1
	}
	return f.offsets[i]
}

// window returns the first n characters of s.
func window(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// AdditiveTerms returns the search terms for an additive: its code and the
// words of its name that are at least four characters long.
func AdditiveTerms(code, name string) []string {
	terms := []string{strings.ToLower(code)}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if utf8.RuneCountInString(w) >= 4 {
			terms = append(terms, w)
		}
	}
	return terms
}
