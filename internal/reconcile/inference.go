package reconcile

import (
	"strings"
	"time"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/template"
)

// inferConfidencePenalty discounts an inferred value below its sources; a
// derivation is never more trustworthy than what it derives from.
const inferConfidencePenalty = 0.9

// inferenceRule derives a missing field's value from fields already
// reconciled. ok is false when the rule does not apply.
type inferenceRule func(fields map[string]Field) (value any, confidence float64, ok bool)

// inferenceRules maps target field names to their derivation. Domain rules:
// names compose and decompose, ages derive from birth dates.
var inferenceRules = map[string]inferenceRule{
	"full_name":  inferFullName,
	"first_name": inferNamePart(0),
	"last_name":  inferNamePart(1),
	"age":        inferAge,
}

// InferMissing attempts to derive values for reconciled fields whose source
// is "missing". Only fields with an applicable rule change; the rest stay
// missing. Returns just the fields that were inferred.
func InferMissing(fields map[string]Field, schema *template.Schema) map[string]Field {
	out := map[string]Field{}
	for _, name := range schema.FieldNames() {
		f, present := fields[name]
		if !present || !f.Missing() {
			continue
		}
		rule, ok := inferenceRules[name]
		if !ok {
			continue
		}
		value, conf, ok := rule(fields)
		if !ok {
			continue
		}
		out[name] = Field{
			Value:        value,
			Confidence:   conf,
			Source:       constants.SourceInferred,
			Transformed:  true,
			DetectedType: f.DetectedType,
		}
	}
	return out
}

func inferFullName(fields map[string]Field) (any, float64, bool) {
	first, okF := stringValue(fields, "first_name")
	last, okL := stringValue(fields, "last_name")
	if !okF || !okL {
		return nil, 0, false
	}
	conf := minConf(fields["first_name"].Confidence, fields["last_name"].Confidence) * inferConfidencePenalty
	return first + " " + last, conf, true
}

// inferNamePart splits full_name: part 0 is the first token, part 1 the rest.
func inferNamePart(part int) inferenceRule {
	return func(fields map[string]Field) (any, float64, bool) {
		full, ok := stringValue(fields, "full_name")
		if !ok {
			return nil, 0, false
		}
		tokens := strings.Fields(full)
		if len(tokens) < 2 {
			return nil, 0, false
		}
		conf := fields["full_name"].Confidence * inferConfidencePenalty
		if part == 0 {
			return tokens[0], conf, true
		}
		return strings.Join(tokens[1:], " "), conf, true
	}
}

func inferAge(fields map[string]Field) (any, float64, bool) {
	for _, source := range []string{"birth_date", "dob", "date_of_birth"} {
		f, ok := fields[source]
		if !ok || f.Missing() {
			continue
		}
		born, ok := f.Value.(time.Time)
		if !ok {
			continue
		}
		now := time.Now().UTC()
		age := int64(now.Year() - born.Year())
		if now.YearDay() < born.YearDay() {
			age--
		}
		if age < 0 || age > 130 {
			return nil, 0, false
		}
		return age, f.Confidence * inferConfidencePenalty, true
	}
	return nil, 0, false
}

func stringValue(fields map[string]Field, name string) (string, bool) {
	f, ok := fields[name]
	if !ok || f.Missing() {
		return "", false
	}
	s, ok := f.Value.(string)
	return s, ok && s != ""
}

func minConf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
