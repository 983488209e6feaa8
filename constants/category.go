package constants

// Pattern categories the detector can scan a document for. Each category owns
// an ordered list of named patterns in the pattern library.
const (
	CategoryContact   = "contact"
	CategoryIdentity  = "identity"
	CategoryMedical   = "medical"
	CategoryTemporal  = "temporal"
	CategoryFinancial = "financial"
)

// PatternCategories is the canonical scan order.
var PatternCategories = []string{
	CategoryIdentity,
	CategoryContact,
	CategoryTemporal,
	CategoryMedical,
	CategoryFinancial,
}

// IsPatternCategory reports whether s names a known category.
func IsPatternCategory(s string) bool {
	for _, c := range PatternCategories {
		if s == c {
			return true
		}
	}
	return false
}
