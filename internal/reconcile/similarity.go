package reconcile

import (
	"strings"

	"github.com/agext/levenshtein"
)

// nameSimilarity scores how well a candidate label fits a declared field
// name, in [0,1]. Containment gets a high floor so "contact_phone" accepts a
// "phone" candidate; otherwise plain Levenshtein similarity decides.
func nameSimilarity(fieldName, label string) float64 {
	a := normalizeName(fieldName)
	b := normalizeName(label)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	sim := levenshtein.Similarity(a, b, levenshtein.NewParams())
	if strings.Contains(a, b) || strings.Contains(b, a) {
		if sim < 0.9 {
			sim = 0.9
		}
	}
	return sim
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
