package corpus

import "github.com/opensource-food/mizan/internal/domain"

const (
	wb       = domain.MatchWordBoundary
	contains = domain.MatchContains
	regex    = domain.MatchRegex
)

// Ingredient rules are listed in tie-break order: with equal priorities,
// the earlier rule wins deduplication.
var ingredientRulings = []domain.IngredientRuling{
	// Pork
	{ID: "pork-fr-porc", Pattern: "porc", MatchType: wb, Priority: 50, RulingDefault: haram, Confidence: 0.95, Category: "pork", Explanation: "Viande de porc."},
	{ID: "pork-fr-cochon", Pattern: "cochon", MatchType: wb, Priority: 50, RulingDefault: haram, Confidence: 0.95, Category: "pork", Explanation: "Viande de porc."},
	{
		ID: "pork-fr-graisse", Pattern: "graisse de porc", MatchType: contains, Priority: 100,
		RulingDefault: haram, Confidence: 0.98, Category: "pork", OverridesKeyword: "porc",
		Explanation: "Graisse de porc (pork fat) : d'origine porcine.",
	},
	{
		ID: "pork-fr-gras-regex", Pattern: `gras de (porc|cochon)`, MatchType: regex, Priority: 95,
		RulingDefault: haram, Confidence: 0.95, Category: "pork",
		Explanation: "Gras de porc : d'origine porcine.",
	},
	{ID: "pork-fr-lard", Pattern: "lard", MatchType: wb, Priority: 60, RulingDefault: haram, Confidence: 0.95, Category: "pork", Explanation: "Lard : graisse de porc."},
	{ID: "pork-fr-saindoux", Pattern: "saindoux", MatchType: wb, Priority: 60, RulingDefault: haram, Confidence: 0.98, Category: "pork", Explanation: "Saindoux : graisse de porc fondue."},
	{ID: "pork-bacon", Pattern: "bacon", MatchType: wb, Priority: 60, RulingDefault: haram, Confidence: 0.95, Category: "pork", Explanation: "Poitrine de porc fumée."},
	{ID: "pork-fr-jambon", Pattern: "jambon", MatchType: wb, Priority: 50, RulingDefault: haram, Confidence: 0.9, Category: "pork", Explanation: "Jambon : viande de porc par défaut."},
	{
		ID: "meat-fr-jambon-dinde", Pattern: "jambon de dinde", MatchType: contains, Priority: 90,
		RulingDefault: doubtful, Confidence: 0.6, Category: "meat", OverridesKeyword: "jambon",
		Explanation: "Volaille : l'abattage rituel n'est pas garanti.",
	},
	{ID: "pork-en-pork", Pattern: "pork", MatchType: wb, Priority: 50, RulingDefault: haram, Confidence: 0.95, Category: "pork", Explanation: "Pork meat."},
	{
		ID: "pork-en-fat", Pattern: "pork fat", MatchType: contains, Priority: 100,
		RulingDefault: haram, Confidence: 0.98, Category: "pork", OverridesKeyword: "pork",
		Explanation: "Pork fat.",
	},

	// Gelatin
	{
		ID: "gelatin-fr", Pattern: "gélatine", MatchType: wb, Priority: 40,
		RulingDefault: doubtful, Hanafi: ptr(haram), Confidence: 0.7, Category: "gelatin", AdditiveCode: "E441",
		Explanation: "Gélatine d'origine non précisée.",
	},
	{
		ID: "gelatin-fr-porc", Pattern: "gélatine de porc", MatchType: contains, Priority: 100,
		RulingDefault: haram, Confidence: 0.98, Category: "pork", OverridesKeyword: "gélatine", AdditiveCode: "E441",
		Explanation: "Gélatine d'origine porcine.",
	},
	{
		ID: "gelatin-fr-poisson", Pattern: "gélatine de poisson", MatchType: contains, Priority: 100,
		RulingDefault: halal, Confidence: 0.9, Category: "gelatin", OverridesKeyword: "gélatine", AdditiveCode: "E441",
		Explanation: "Gélatine de poisson.",
	},
	{
		ID: "gelatin-fr-bovine", Pattern: "gélatine bovine", MatchType: contains, Priority: 90,
		RulingDefault: doubtful, Confidence: 0.6, Category: "gelatin", OverridesKeyword: "gélatine", AdditiveCode: "E441",
		Explanation: "Gélatine bovine : l'abattage rituel n'est pas garanti.",
	},
	{
		ID: "gelatin-en", Pattern: "gelatin", MatchType: wb, Priority: 40,
		RulingDefault: doubtful, Hanafi: ptr(haram), Confidence: 0.7, Category: "gelatin", AdditiveCode: "E441",
		Explanation: "Gelatin of unspecified origin.",
	},
	{
		ID: "gelatin-en-pork", Pattern: "pork gelatin", MatchType: contains, Priority: 100,
		RulingDefault: haram, Confidence: 0.98, Category: "pork", OverridesKeyword: "gelatin", AdditiveCode: "E441",
		Explanation: "Pork gelatin.",
	},
	{
		ID: "gelatin-en-fish", Pattern: "fish gelatin", MatchType: contains, Priority: 100,
		RulingDefault: halal, Confidence: 0.9, Category: "gelatin", OverridesKeyword: "gelatin", AdditiveCode: "E441",
		Explanation: "Fish gelatin.",
	},

	// Alcohol
	{ID: "alcohol-fr-vin", Pattern: "vin", MatchType: wb, Priority: 30, RulingDefault: haram, Confidence: 0.9, Category: "alcohol", Explanation: "Vin : boisson enivrante."},
	{
		ID: "alcohol-fr-vinaigre-vin", Pattern: "vinaigre de vin", MatchType: contains, Priority: 110,
		RulingDefault: halal, Confidence: 0.85, Category: "vinegar", OverridesKeyword: "vin",
		Explanation: "Le vinaigre est un produit transformé (istihalah) ; l'alcool n'y subsiste pas.",
	},
	{ID: "alcohol-en-wine", Pattern: "wine", MatchType: wb, Priority: 30, RulingDefault: haram, Confidence: 0.9, Category: "alcohol", Explanation: "Wine."},
	{
		ID: "alcohol-en-wine-vinegar", Pattern: "wine vinegar", MatchType: contains, Priority: 110,
		RulingDefault: halal, Confidence: 0.85, Category: "vinegar", OverridesKeyword: "wine",
		Explanation: "Vinegar is a transformed product (istihalah).",
	},
	{ID: "alcohol-fr-alcool", Pattern: "alcool", MatchType: wb, Priority: 40, RulingDefault: haram, Confidence: 0.85, Category: "alcohol", Explanation: "Alcool."},
	{
		ID: "alcohol-fr-sans-alcool", Pattern: "sans alcool", MatchType: contains, Priority: 90,
		RulingDefault: halal, Confidence: 0.7, Category: "alcohol", OverridesKeyword: "alcool",
		Explanation: "Mention « sans alcool ».",
	},
	{ID: "alcohol-fr-rhum", Pattern: "rhum", MatchType: wb, Priority: 40, RulingDefault: haram, Confidence: 0.9, Category: "alcohol", Explanation: "Rhum."},
	{ID: "alcohol-fr-biere", Pattern: "bière", MatchType: wb, Priority: 40, RulingDefault: haram, Confidence: 0.9, Category: "alcohol", Explanation: "Bière."},
	{ID: "alcohol-en-beer", Pattern: "beer", MatchType: wb, Priority: 40, RulingDefault: haram, Confidence: 0.9, Category: "alcohol", Explanation: "Beer."},

	// Emulsifiers
	{
		ID: "emulsifier-fr-mono-diglycerides", Pattern: "mono- et diglycérides", MatchType: contains, Priority: 60,
		RulingDefault: doubtful, Confidence: 0.6, Category: "emulsifier", OverridesKeyword: "diglycérides", AdditiveCode: "E471",
		Explanation: "Mono- et diglycérides : graisses animales ou végétales.",
	},
	{
		ID: "emulsifier-fr-diglycerides", Pattern: "diglycérides", MatchType: wb, Priority: 40,
		RulingDefault: doubtful, Confidence: 0.5, Category: "emulsifier", AdditiveCode: "E471",
		Explanation: "Diglycérides : graisses animales ou végétales.",
	},
	{
		ID: "emulsifier-en-mono-diglycerides", Pattern: "mono- and diglycerides", MatchType: contains, Priority: 60,
		RulingDefault: doubtful, Confidence: 0.6, Category: "emulsifier", AdditiveCode: "E471",
		Explanation: "Mono- and diglycerides: animal or vegetable fat.",
	},
	{
		ID: "humectant-fr-glycerine", Pattern: "glycérine", MatchType: wb, Priority: 40,
		RulingDefault: doubtful, Confidence: 0.5, Category: "emulsifier", AdditiveCode: "E422",
		Explanation: "Glycérine : graisses animales ou végétales.",
	},

	// Enzymes
	{
		ID: "enzyme-fr-presure", Pattern: "présure", MatchType: wb, Priority: 40,
		RulingDefault: doubtful, Hanafi: ptr(halal), Confidence: 0.6, Category: "enzyme",
		Explanation: "Présure : enzyme souvent extraite de caillette de veau.",
	},
	{
		ID: "enzyme-fr-presure-microbienne", Pattern: "présure microbienne", MatchType: contains, Priority: 90,
		RulingDefault: halal, Confidence: 0.85, Category: "enzyme", OverridesKeyword: "présure",
		Explanation: "Présure d'origine microbienne.",
	},
	{
		ID: "enzyme-en-rennet", Pattern: "rennet", MatchType: wb, Priority: 40,
		RulingDefault: doubtful, Hanafi: ptr(halal), Confidence: 0.6, Category: "enzyme",
		Explanation: "Rennet: often from calf stomach.",
	},

	// Insect-derived
	{
		ID: "insect-fr-carmin", Pattern: "carmin", MatchType: wb, Priority: 50,
		RulingDefault: haram, Maliki: ptr(halal), Hanbali: ptr(doubtful), Confidence: 0.9, Category: "insect", AdditiveCode: "E120",
		Explanation: "Carmin : colorant extrait de cochenilles.",
	},
	{
		ID: "insect-fr-cochenille", Pattern: "cochenille", MatchType: wb, Priority: 50,
		RulingDefault: haram, Maliki: ptr(halal), Hanbali: ptr(doubtful), Confidence: 0.9, Category: "insect", AdditiveCode: "E120",
		Explanation: "Cochenille : insecte utilisé comme colorant.",
	},
	{
		ID: "insect-fr-gomme-laque", Pattern: "gomme laque", MatchType: contains, Priority: 50,
		RulingDefault: doubtful, Maliki: ptr(halal), Confidence: 0.6, Category: "insect", AdditiveCode: "E904",
		Explanation: "Gomme laque : sécrétion d'insecte.",
	},
	{
		ID: "insect-en-shellac", Pattern: "shellac", MatchType: wb, Priority: 50,
		RulingDefault: doubtful, Maliki: ptr(halal), Confidence: 0.6, Category: "insect", AdditiveCode: "E904",
		Explanation: "Shellac: insect secretion.",
	},

	// Other animal derived
	{
		ID: "animal-fr-l-cysteine", Pattern: "l-cystéine", MatchType: contains, Priority: 50,
		RulingDefault: doubtful, Confidence: 0.6, Category: "amino acid", AdditiveCode: "E920",
		Explanation: "L-cystéine : plumes, poils ou synthèse.",
	},
	{ID: "animal-fr-sang", Pattern: "sang", MatchType: wb, Priority: 50, RulingDefault: haram, Confidence: 0.95, Category: "blood", Explanation: "Le sang est interdit."},
}
