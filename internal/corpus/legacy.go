package corpus

import (
	"sort"

	"github.com/opensource-food/mizan/internal/domain"
)

// legacyAdditives is the historical hardcoded additive table, keyed by the
// lowercase OpenFoodFacts tag. It only answers for codes the repository
// does not know.
var legacyAdditives = map[string]domain.AdditiveRecord{
	"en:e120": {
		Code: "E120", Name: "Cochineal", Category: "colorant", Status: haram,
		RiskFlags: []string{domain.RiskInsectOrigin}, Explanation: "Insect-derived red colour.",
	},
	"en:e441": {
		Code: "E441", Name: "Gelatine", Category: "gelifiant", Status: doubtful,
		RiskFlags: []string{domain.RiskAnimalOrigin}, Explanation: "Animal protein of unknown source.",
	},
	"en:e913": {
		Code: "E913", Name: "Lanoline", Category: "agent d'enrobage", Status: doubtful,
		RiskFlags: []string{domain.RiskAnimalOrigin}, Explanation: "Graisse de laine de mouton.",
	},
	"en:e966": {
		Code: "E966", Name: "Lactitol", Category: "edulcorant", Status: halal,
		Explanation: "Dérivé du lactose.",
	},
	"en:e1105": {
		Code: "E1105", Name: "Lysozyme", Category: "conservateur", Status: halal,
		Explanation: "Enzyme extraite du blanc d'oeuf.",
	},
	"en:e1518": {
		Code: "E1518", Name: "Triacétine", Category: "humectant", Status: doubtful,
		RiskFlags: []string{domain.RiskAnimalOrigin}, Explanation: "Ester de glycérol, origine non précisée.",
	},
	"en:e901": {
		Code: "E901", Name: "Cire d'abeille", Category: "agent d'enrobage", Status: halal,
		RiskFlags: []string{domain.RiskInsectOrigin}, Explanation: "Produit de la ruche.",
	},
	// Variant tag of the same compound; collapses onto E160.
	"en:e160a": {
		Code: "E160", Name: "Caroténoïdes", Category: "colorant", Status: halal,
		Explanation: "Pigments végétaux.",
	},
}

// LegacySet returns the legacy table as a corpus so it can back a
// lowest-priority repository.
func LegacySet() *Set {
	s := &Set{Version: Version}
	for _, rec := range legacyAdditives {
		s.Additives = append(s.Additives, rec)
	}
	sort.Slice(s.Additives, func(i, j int) bool {
		return s.Additives[i].Code < s.Additives[j].Code
	})
	return s
}
