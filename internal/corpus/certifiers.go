package corpus

import "strings"

// Certifier is a recognized halal certification body.
type Certifier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// certifiers is keyed by the label slug as it appears once locale and noise
// prefixes are stripped.
var certifiers = map[string]Certifier{
	"avs":              {ID: "avs", Name: "A Votre Service (AVS)", Country: "FR"},
	"achahada":         {ID: "achahada", Name: "Achahada", Country: "FR"},
	"mosquee-de-paris": {ID: "mosquee-de-paris", Name: "Grande Mosquée de Paris (SFCVH)", Country: "FR"},
	"sfcvh":            {ID: "mosquee-de-paris", Name: "Grande Mosquée de Paris (SFCVH)", Country: "FR"},
	"mosquee-de-lyon":  {ID: "mosquee-de-lyon", Name: "Grande Mosquée de Lyon (ARGML)", Country: "FR"},
	"argml":            {ID: "mosquee-de-lyon", Name: "Grande Mosquée de Lyon (ARGML)", Country: "FR"},
	"mosquee-d-evry":   {ID: "mosquee-d-evry", Name: "Mosquée d'Évry-Courcouronnes", Country: "FR"},
	"halal-services":   {ID: "halal-services", Name: "Halal Services", Country: "FR"},
	"halal-correct":    {ID: "halal-correct", Name: "Halal Correct", Country: "NL"},
	"hfa":              {ID: "hfa", Name: "Halal Food Authority", Country: "GB"},
	"hmc":              {ID: "hmc", Name: "Halal Monitoring Committee", Country: "GB"},
	"ifanca":           {ID: "ifanca", Name: "Islamic Food and Nutrition Council of America", Country: "US"},
	"jakim":            {ID: "jakim", Name: "JAKIM", Country: "MY"},
	"muis":             {ID: "muis", Name: "Majlis Ugama Islam Singapura", Country: "SG"},
	"mui":              {ID: "mui", Name: "Majelis Ulama Indonesia", Country: "ID"},
}

// halalLabels are generic halal claims with no identifiable certifier.
var halalLabels = map[string]struct{}{
	"halal":           {},
	"certified-halal": {},
	"halal-certified": {},
	"halal-certifie":  {},
	"halal-certifié":  {},
	"produit-halal":   {},
	"100-halal":       {},
}

// noisePrefixes are stripped from label slugs, longest first.
var noisePrefixes = []string{
	"certification-halal-",
	"certification-",
	"certifié-",
	"certifie-",
}

// LookupCertifier returns the certifier registered under key.
func LookupCertifier(key string) (Certifier, bool) {
	c, ok := certifiers[strings.ToLower(key)]
	return c, ok
}

// IsHalalLabel reports whether key is a generic halal label.
func IsHalalLabel(key string) bool {
	_, ok := halalLabels[strings.ToLower(key)]
	return ok
}

// NoisePrefixes returns the label prefixes stripped before certifier lookup,
// longest first.
func NoisePrefixes() []string {
	out := make([]string, len(noisePrefixes))
	copy(out, noisePrefixes)
	return out
}
