package patterns

import (
	"github.com/clinidocs/fieldmapper/constants"
)

// patternTypeTable is the fixed pattern-name -> semantic-type mapping the
// analyzer classifies with. Documented configuration, never inferred at
// runtime; extend it alongside the pattern tables.
var patternTypeTable = map[string]constants.FieldType{
	"full_name":     constants.TypeString,
	"id_number":     constants.TypeString,
	"phone":         constants.TypeString,
	"email":         constants.TypeString,
	"address":       constants.TypeString,
	"date_iso":      constants.TypeDate,
	"date_slash":    constants.TypeDate,
	"date_long":     constants.TypeDate,
	"blood_type":    constants.TypeString,
	"weight":        constants.TypeFloat,
	"height":        constants.TypeFloat,
	"age":           constants.TypeInteger,
	"amount":        constants.TypeFloat,
	"currency_code": constants.TypeString,
}

// typePriority ranks specific types above the string fallback when matched
// pattern names disagree.
var typePriority = []constants.FieldType{
	constants.TypeDate,
	constants.TypeFloat,
	constants.TypeInteger,
	constants.TypeBoolean,
	constants.TypeString,
}

// Analyzer classifies the best-guess semantic type for a field from the union
// of pattern names that matched it.
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

// ClassifyType returns the strongest type implied by the matched pattern
// names. Unknown names contribute nothing; with no signal at all the guess is
// string.
func (a *Analyzer) ClassifyType(patternNames []string) constants.FieldType {
	votes := map[constants.FieldType]int{}
	for _, name := range patternNames {
		if t, ok := patternTypeTable[name]; ok {
			votes[t]++
		}
	}
	if len(votes) == 0 {
		return constants.TypeString
	}
	best := constants.TypeString
	bestVotes := -1
	// priority order breaks ties deterministically
	for _, t := range typePriority {
		if v := votes[t]; v > bestVotes {
			best = t
			bestVotes = v
		}
	}
	return best
}
