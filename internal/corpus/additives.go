package corpus

import "github.com/opensource-food/mizan/internal/domain"

var (
	halal    = domain.StatusHalal
	haram    = domain.StatusHaram
	doubtful = domain.StatusDoubtful
)

func ptr(s domain.Status) *domain.Status { return &s }

var additives = []domain.AdditiveRecord{
	{Code: "E100", Name: "Curcumine", Category: "colorant", Status: halal, Explanation: "Colorant extrait du curcuma."},
	{Code: "E101", Name: "Riboflavine", Category: "colorant", Status: halal, Explanation: "Vitamine B2, produite par fermentation."},
	{
		Code: "E120", Name: "Carmin, cochenille", Category: "colorant", Status: haram,
		RiskFlags:   []string{domain.RiskInsectOrigin},
		Explanation: "Colorant rouge extrait d'insectes (cochenilles).",
	},
	{Code: "E150", Name: "Caramel", Category: "colorant", Status: halal, Explanation: "Sucre chauffé."},
	{
		Code: "E153", Name: "Charbon végétal", Category: "colorant", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Peut être obtenu à partir d'os calcinés.",
	},
	{Code: "E160", Name: "Caroténoïdes", Category: "colorant", Status: halal, Explanation: "Pigments végétaux."},
	{Code: "E170", Name: "Carbonate de calcium", Category: "colorant", Status: halal, Explanation: "Minéral."},
	{Code: "E200", Name: "Acide sorbique", Category: "conservateur", Status: halal, Explanation: "Synthétique."},
	{Code: "E202", Name: "Sorbate de potassium", Category: "conservateur", Status: halal, Explanation: "Synthétique."},
	{Code: "E211", Name: "Benzoate de sodium", Category: "conservateur", Status: halal, Explanation: "Synthétique."},
	{Code: "E250", Name: "Nitrite de sodium", Category: "conservateur", Status: halal, Explanation: "Minéral."},
	{Code: "E270", Name: "Acide lactique", Category: "acidifiant", Status: halal, Explanation: "Fermentation bactérienne de sucres."},
	{Code: "E300", Name: "Acide ascorbique", Category: "antioxydant", Status: halal, Explanation: "Vitamine C."},
	{Code: "E322", Name: "Lécithines", Category: "emulsifier", Status: halal, Explanation: "Généralement extraites du soja ou du tournesol."},
	{Code: "E330", Name: "Acide citrique", Category: "acidifiant", Status: halal, Explanation: "Fermentation de sucres."},
	{Code: "E331", Name: "Citrates de sodium", Category: "acidifiant", Status: halal, Explanation: "Sels d'acide citrique."},
	{Code: "E407", Name: "Carraghénanes", Category: "epaississant", Status: halal, Explanation: "Extraits d'algues."},
	{Code: "E410", Name: "Farine de graines de caroube", Category: "epaississant", Status: halal, Explanation: "Végétal."},
	{Code: "E412", Name: "Gomme guar", Category: "epaississant", Status: halal, Explanation: "Végétal."},
	{Code: "E415", Name: "Gomme xanthane", Category: "epaississant", Status: halal, Explanation: "Fermentation bactérienne."},
	{
		Code: "E422", Name: "Glycérol", Category: "humectant", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Peut provenir de graisses animales ou végétales.",
	},
	{Code: "E440", Name: "Pectines", Category: "gelifiant", Status: halal, Explanation: "Extraites de fruits."},
	{
		Code: "E441", Name: "Gélatine", Category: "gelifiant", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin, domain.RiskPork},
		Explanation: "Protéine animale, souvent d'origine porcine ou bovine non abattue rituellement.",
	},
	{Code: "E450", Name: "Diphosphates", Category: "stabilisant", Status: halal, Explanation: "Minéral."},
	{
		Code: "E470", Name: "Sels d'acides gras", Category: "emulsifier", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Acides gras d'origine animale ou végétale.",
	},
	{
		Code: "E471", Name: "Mono- et diglycérides d'acides gras", Category: "emulsifier", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Peuvent être produits à partir de graisses animales, dont le porc.",
	},
	{
		Code: "E472", Name: "Esters de mono- et diglycérides", Category: "emulsifier", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Dérivés de E471, même incertitude sur l'origine des graisses.",
	},
	{Code: "E500", Name: "Carbonates de sodium", Category: "poudre a lever", Status: halal, Explanation: "Minéral."},
	{Code: "E503", Name: "Carbonates d'ammonium", Category: "poudre a lever", Status: halal, Explanation: "Minéral."},
	{
		Code: "E542", Name: "Phosphate d'os comestible", Category: "antiagglomerant", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Extrait d'os d'animaux.",
	},
	{Code: "E551", Name: "Dioxyde de silicium", Category: "antiagglomerant", Status: halal, Explanation: "Minéral."},
	{
		Code: "E570", Name: "Acides gras", Category: "emulsifier", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Acide stéarique, d'origine animale ou végétale.",
	},
	{Code: "E621", Name: "Glutamate monosodique", Category: "exhausteur de gout", Status: halal, Explanation: "Fermentation bactérienne."},
	{
		Code: "E627", Name: "Guanylate disodique", Category: "exhausteur de gout", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Peut être extrait de poisson ou de viande.",
	},
	{
		Code: "E631", Name: "Inosinate disodique", Category: "exhausteur de gout", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin, domain.RiskPork},
		Explanation: "Souvent extrait de viande ou de poisson.",
	},
	{
		Code: "E635", Name: "Ribonucléotides disodiques", Category: "exhausteur de gout", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Mélange de E627 et E631.",
	},
	{Code: "E640", Name: "Glycine", Category: "exhausteur de gout", Status: doubtful, RiskFlags: []string{domain.RiskAnimalOrigin}, Explanation: "Peut être obtenue à partir de gélatine."},
	{
		Code: "E904", Name: "Gomme laque", Category: "agent d'enrobage", Status: doubtful,
		RiskFlags:   []string{domain.RiskInsectOrigin},
		Explanation: "Résine sécrétée par un insecte (cochenille à laque).",
	},
	{
		Code: "E920", Name: "L-cystéine", Category: "agent de traitement de la farine", Status: doubtful,
		RiskFlags:   []string{domain.RiskAnimalOrigin},
		Explanation: "Peut être extraite de plumes ou de poils, parfois humains.",
	},
	{Code: "E950", Name: "Acésulfame K", Category: "edulcorant", Status: halal, Explanation: "Synthétique."},
	{Code: "E951", Name: "Aspartame", Category: "edulcorant", Status: halal, Explanation: "Synthétique."},
	{Code: "E955", Name: "Sucralose", Category: "edulcorant", Status: halal, Explanation: "Synthétique."},
	{Code: "E960", Name: "Glycosides de stéviol", Category: "edulcorant", Status: halal, Explanation: "Extraits de stévia."},
	{
		Code: "E1510", Name: "Éthanol", Category: "solvant", Status: doubtful,
		RiskFlags:   []string{domain.RiskAlcohol},
		Explanation: "Alcool éthylique utilisé comme support d'arômes.",
	},
}

var madhabRulings = []domain.MadhabRuling{
	{
		Key: "E120", Madhab: domain.MadhabMaliki, Ruling: ptr(halal),
		Explanation: "Les insectes ne sont pas impurs ; le carmin est admis.",
		Reference:   "Mudawwana, livre des aliments",
	},
	{
		Key: "E120", Madhab: domain.MadhabHanafi, Ruling: ptr(haram),
		Explanation: "Les insectes, hormis le criquet, ne sont pas consommables.",
	},
	{
		Key: "E120", Madhab: domain.MadhabShafii, Ruling: ptr(haram),
		Explanation: "Les insectes sont considérés comme répugnants (khaba'ith).",
	},
	{
		Key: "E120", Madhab: domain.MadhabHanbali, Ruling: ptr(doubtful),
		Explanation: "Avis partagés sur les insectes en très faible quantité.",
	},
	{
		Key: "E441", Madhab: domain.MadhabHanafi, Ruling: ptr(haram),
		Explanation: "La transformation (istihalah) n'est pas retenue pour la gélatine d'origine inconnue.",
	},
	// Defers to the default ruling.
	{Key: "E441", Madhab: domain.MadhabMaliki, Explanation: "Pas d'avis propre."},
	{
		Key: "E904", Madhab: domain.MadhabMaliki, Ruling: ptr(halal),
		Explanation: "Sécrétion d'insecte, considérée comme pure.",
	},
	{
		Key: "E1510", Madhab: domain.MadhabHanafi, Ruling: ptr(halal),
		Explanation: "Alcool non issu du raisin ou de la datte, en quantité non enivrante.",
	},
	{
		Key: "E1510", Madhab: domain.MadhabMaliki, Ruling: ptr(haram),
		Explanation: "Tout alcool est considéré comme impur.",
	},
	{
		Key: "E1510", Madhab: domain.MadhabShafii, Ruling: ptr(haram),
		Explanation: "Tout alcool est considéré comme impur.",
	},
}
