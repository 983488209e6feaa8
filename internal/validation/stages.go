package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/clinidocs/fieldmapper/constants"
	"github.com/clinidocs/fieldmapper/internal/template"
	"github.com/clinidocs/fieldmapper/internal/transform"
)

// stageStructure checks that every declared required field appears in the
// record at all. A record missing its required keys is structurally broken:
// later stages would only report noise, so this failure is critical.
func stageStructure(in *input) StageResult {
	sr := StageResult{Valid: true}
	for _, name := range in.schema.RequiredFields() {
		if _, ok := in.fields[name]; !ok {
			sr.Valid = false
			sr.Critical = true
			msg := "required field absent from record: " + name
			sr.Errors = append(sr.Errors, msg)
			in.fieldErrors[name] = append(in.fieldErrors[name], msg)
		}
	}
	// unknown keys are a warning, not an error
	var unknown []string
	for name := range in.fields {
		if _, ok := in.schema.Spec(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		sr.Warnings = append(sr.Warnings, "field not declared in template: "+name)
	}
	return sr
}

// stageTypes checks that each present value carries its declared type.
func stageTypes(in *input) StageResult {
	sr := StageResult{Valid: true}
	for _, name := range in.schema.FieldNames() {
		f, ok := in.fields[name]
		if !ok || f.Missing() {
			continue
		}
		spec, _ := in.schema.Spec(name)
		if !valueHasType(f.Value, spec.Type) {
			sr.Valid = false
			msg := fmt.Sprintf("field %s: value is not a %s", name, spec.Type)
			sr.Errors = append(sr.Errors, msg)
			in.fieldErrors[name] = append(in.fieldErrors[name], msg)
		}
	}
	return sr
}

func valueHasType(v any, t constants.FieldType) bool {
	switch t {
	case constants.TypeString, constants.TypeRelation:
		_, ok := v.(string)
		return ok
	case constants.TypeInteger:
		_, ok := v.(int64)
		return ok
	case constants.TypeFloat:
		switch v.(type) {
		case float64, int64:
			return true
		}
		return false
	case constants.TypeDate:
		_, ok := v.(time.Time)
		return ok
	case constants.TypeBoolean:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}

// stageContent applies the declared validator rules, allowed values and
// patterns to each present value.
func stageContent(in *input) StageResult {
	sr := StageResult{Valid: true}
	for _, name := range in.schema.FieldNames() {
		f, ok := in.fields[name]
		if !ok || f.Missing() {
			continue
		}
		spec, _ := in.schema.Spec(name)
		text := transform.FormatValue(f.Value)

		if len(spec.AllowedValues) > 0 && !contains(spec.AllowedValues, text) {
			fail(&sr, in, name, fmt.Sprintf("field %s: value %q is not among allowed values", name, text))
		}
		if spec.Pattern != "" {
			if re, err := regexp.Compile(spec.Pattern); err == nil && !re.MatchString(text) {
				fail(&sr, in, name, fmt.Sprintf("field %s: value does not match declared pattern", name))
			}
		}
		for _, rule := range spec.Validators {
			applyRule(&sr, in, name, text, f.Value, rule)
		}
	}
	return sr
}

func applyRule(sr *StageResult, in *input, name, text string, value any, rule template.ValidatorRule) {
	runes := len([]rune(text))
	if rule.MinLength != nil && runes < *rule.MinLength {
		fail(sr, in, name, fmt.Sprintf("field %s: shorter than %d characters", name, *rule.MinLength))
	}
	if rule.MaxLength != nil && runes > *rule.MaxLength {
		fail(sr, in, name, fmt.Sprintf("field %s: longer than %d characters", name, *rule.MaxLength))
	}
	if rule.Min != nil || rule.Max != nil {
		if num, ok := numericValue(value); ok {
			if rule.Min != nil && num < *rule.Min {
				fail(sr, in, name, fmt.Sprintf("field %s: below minimum %v", name, *rule.Min))
			}
			if rule.Max != nil && num > *rule.Max {
				fail(sr, in, name, fmt.Sprintf("field %s: above maximum %v", name, *rule.Max))
			}
		}
	}
	if rule.Pattern != "" {
		if re, err := regexp.Compile(rule.Pattern); err == nil && !re.MatchString(text) {
			fail(sr, in, name, fmt.Sprintf("field %s: value does not match validator pattern", name))
		}
	}
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// stageRelationships delegates to the relationship manager.
func (p *Pipeline) stageRelationships(in *input) StageResult {
	rr := p.relMgr.Validate(in.relset, in.fields)
	sr := StageResult{Valid: rr.Valid, Errors: rr.Errors, Warnings: rr.Warnings}
	for _, msg := range rr.Errors {
		// relationship errors name the offending field first
		if name, ok := firstFieldIn(msg, in); ok {
			in.fieldErrors[name] = append(in.fieldErrors[name], msg)
		}
	}
	return sr
}

func firstFieldIn(msg string, in *input) (string, bool) {
	for _, tok := range strings.Fields(msg) {
		if _, ok := in.schema.Spec(tok); ok {
			return tok, true
		}
	}
	return "", false
}

// stageBusinessRules applies domain rules that cut across fields: required
// values must be non-empty, dates of birth cannot be in the future, ages must
// be plausible.
func stageBusinessRules(in *input) StageResult {
	sr := StageResult{Valid: true}
	now := time.Now().UTC()

	for _, name := range in.schema.FieldNames() {
		f, ok := in.fields[name]
		if !ok {
			continue
		}
		spec, _ := in.schema.Spec(name)

		if spec.Required && f.Missing() {
			fail(&sr, in, name, "required field has no value: "+name)
			continue
		}
		if f.Missing() {
			continue
		}
		if t, ok := f.Value.(time.Time); ok && isBirthField(name) && t.After(now) {
			fail(&sr, in, name, fmt.Sprintf("field %s: birth date is in the future", name))
		}
		if i, ok := f.Value.(int64); ok && name == "age" && (i < 0 || i > 130) {
			fail(&sr, in, name, fmt.Sprintf("field %s: implausible age %d", name, i))
		}
	}
	return sr
}

func isBirthField(name string) bool {
	switch name {
	case "birth_date", "dob", "date_of_birth":
		return true
	}
	return strings.HasSuffix(name, "_birth_date")
}

func fail(sr *StageResult, in *input, name, msg string) {
	sr.Valid = false
	sr.Errors = append(sr.Errors, msg)
	in.fieldErrors[name] = append(in.fieldErrors[name], msg)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
